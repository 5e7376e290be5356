package logx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 with port", "203.0.113.77:51234", "203.0.113.0"},
		{"ipv4 bare", "198.51.100.9", "198.51.100.0"},
		{"loopback", "127.0.0.1:80", "127.0.0.1"},
		{"ipv6", "[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"garbage", "not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}
