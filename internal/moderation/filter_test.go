package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilter_SpamChecks(t *testing.T) {
	f := NewFilter()

	tests := []struct {
		name  string
		input string
		term  string
	}{
		{"http url", "check out http://evil.com", FlagURL},
		{"https url", "visit https://spam.xyz/click", FlagURL},
		{"www url", "go to www.phishing.net", FlagURL},
		{"bare domain with path", "visit evil.com/free", FlagURL},
		{"intl phone", "+1-555-123-4567", FlagPhone},
		{"parenthesized area code", "(555) 123-4567", FlagPhone},
		{"phone in sentence", "call me at 555-123-4567 okay?", FlagPhone},
		{"char flood", "hellooooooo", FlagCharFlood},
		{"exactly five repeated chars", "aaaaa", FlagCharFlood},
		{"word flood", "buy buy buy", FlagWordFlood},
		{"word flood ignores case", "BUY buy Buy", FlagWordFlood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.Check(tt.input)
			require.True(t, res.Flagged)
			require.Equal(t, ReasonSpam, res.Reason)
			require.Equal(t, tt.term, res.Term)
		})
	}
}

func TestFilter_CleanMessages(t *testing.T) {
	f := NewFilter("badword")

	for _, input := range []string{
		"",
		"   ",
		"I have 3 cats",
		"My score is 100",
		"upgrade to v2.0",
		"pi is about 3.14",
		"see you in 2025",
		"wow!!! that's great!!",
		"exactly four aaaa",
		"yeah yeah whatever",
		"it costs $5.99",
		"hello\nworld",
		"badwords and badwording are different words",
	} {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, Result{}, f.Check(input))
		})
	}
}

func TestFilter_Keywords(t *testing.T) {
	req := require.New(t)

	// Given a blocklist with a word, a phrase and noise
	f := NewFilter("BadWord", "go away now", "", "  ")
	req.Equal(2, f.Terms())

	// Then words match case-insensitively on token boundaries
	req.Equal(Result{Flagged: true, Reason: ReasonKeyword, Term: "badword"}, f.Check("you are a BADWORD!"))

	// And phrases match whole, across punctuation
	req.Equal(Result{Flagged: true, Reason: ReasonKeyword, Term: "go away now"}, f.Check("just... go, away now"))
	req.False(f.Check("go away nowhere").Flagged)

	// And keywords win over spam checks
	req.Equal(ReasonKeyword, f.Check("badword http://evil.com").Reason)
}

func TestFilter_Scan(t *testing.T) {
	f := NewFilter("badword")

	flags := f.Scan([]string{
		"hi",
		"add me www.evil.net",
		"badword",
		"or call 555-123-4567",
		"www.again.org",
	})

	require.Equal(t, []string{FlagKeyword, FlagPhone, FlagURL}, flags)
	require.Empty(t, f.Scan(nil))
}
