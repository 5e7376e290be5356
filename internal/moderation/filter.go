// Package moderation flags suspicious chat content for report triage. The
// server relays messages verbatim; flags are only attached to abuse reports
// so reviewers can sort them.
package moderation

import (
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// Reasons a text is flagged.
const (
	ReasonKeyword = "blocked_keyword"
	ReasonSpam    = "spam_pattern"
)

// FlagKeyword is the flag reported for a blocklist hit.
const FlagKeyword = "keyword"

// Result is the outcome of checking one text.
type Result struct {
	Flagged bool
	Reason  string // ReasonKeyword or ReasonSpam
	Term    string // the blocklisted term, or the spam check name
}

// Filter checks texts against a keyword blocklist and the spam checks.
// It is safe for concurrent use.
type Filter struct {
	words   map[string]struct{}
	phrases []string
}

// NewFilter creates a Filter for terms. Terms are case-insensitive; a term
// with spaces matches as a whole phrase. Blank terms are ignored.
func NewFilter(terms ...string) *Filter {
	f := &Filter{words: make(map[string]struct{})}
	for _, t := range terms {
		t = strings.Join(tokenize(t), " ")
		switch {
		case t == "":
		case strings.Contains(t, " "):
			f.phrases = append(f.phrases, t)
		default:
			f.words[t] = struct{}{}
		}
	}
	return f
}

// Terms returns the number of blocklisted terms.
func (f *Filter) Terms() int {
	return len(f.words) + len(f.phrases)
}

// Check returns the first match in text. Blocklisted terms win over spam
// checks.
func (f *Filter) Check(text string) Result {
	if term, ok := f.matchKeyword(text); ok {
		return Result{Flagged: true, Reason: ReasonKeyword, Term: term}
	}
	return checkSpamPatterns(text)
}

// Scan checks every text and returns the distinct flags raised, sorted.
// A keyword hit is reported as FlagKeyword, a spam hit by its check name.
func (f *Filter) Scan(texts []string) []string {
	flags := lo.FilterMap(texts, func(text string, _ int) (string, bool) {
		res := f.Check(text)
		if res.Reason == ReasonKeyword {
			return FlagKeyword, true
		}
		return res.Term, res.Flagged
	})
	flags = lo.Uniq(flags)
	slices.Sort(flags)
	return flags
}

func (f *Filter) matchKeyword(text string) (string, bool) {
	if f.Terms() == 0 {
		return "", false
	}
	tokens := tokenize(text)
	for _, tok := range tokens {
		if _, ok := f.words[tok]; ok {
			return tok, true
		}
	}
	if len(f.phrases) > 0 {
		joined := " " + strings.Join(tokens, " ") + " "
		for _, p := range f.phrases {
			if strings.Contains(joined, " "+p+" ") {
				return p, true
			}
		}
	}
	return "", false
}

// tokenize lowercases text and splits it on anything but letters and digits.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
