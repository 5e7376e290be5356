package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		profile string
		want    string
		wantErr error
	}{
		{name: "default field", profile: `{"uid":"u-1","name":"ann"}`, want: "u-1"},
		{name: "numeric id", profile: `{"uid":42}`, want: "42"},
		{name: "nested path", path: "user.id", profile: `{"user":{"id":"abc"}}`, want: "abc"},
		{name: "trimmed", profile: `{"uid":"  u-2 "}`, want: "u-2"},
		{name: "missing", profile: `{"name":"ann"}`, wantErr: ErrMissing},
		{name: "empty", profile: `{"uid":""}`, wantErr: ErrMissing},
		{name: "object", profile: `{"uid":{"x":1}}`, wantErr: ErrMissing},
		{name: "bool", profile: `{"uid":true}`, wantErr: ErrMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := NewExtractor(tt.path).Extract(json.RawMessage(tt.profile))
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestExtractor_RejectsInvalidJSON(t *testing.T) {
	_, err := NewExtractor("").Extract(json.RawMessage(`{"uid":`))
	require.Error(t, err)
}

func TestExtractor_RejectsOverlongID(t *testing.T) {
	profile := `{"uid":"` + strings.Repeat("x", MaxIDLength+1) + `"}`
	_, err := NewExtractor("").Extract(json.RawMessage(profile))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMissing)
}
