package moderation

import (
	"regexp"
	"strings"
)

var (
	// Bare domains need a path so "v2.0" and "3.14" stay clean.
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// +1-555-123-4567, (555) 123-4567, 555.123.4567; must stand alone.
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

// Spam check names, reported as Result.Term.
const (
	FlagURL       = "url"
	FlagPhone     = "phone"
	FlagCharFlood = "char_flood"
	FlagWordFlood = "word_flood"
)

type spamCheck struct {
	name  string
	match func(string) bool
}

// spamChecks run in order; the first match wins. Off-platform contact
// details come first since they are the usual lure.
var spamChecks = []spamCheck{
	{name: FlagURL, match: urlPattern.MatchString},
	{name: FlagPhone, match: phonePattern.MatchString},
	{name: FlagCharFlood, match: hasCharFlood},
	{name: FlagWordFlood, match: hasWordFlood},
}

// hasCharFlood reports 5 or more identical characters in a row. RE2 has no
// backreferences, hence the scan.
func hasCharFlood(text string) bool {
	const threshold = 5

	run, prev := 0, rune(-1)
	for _, r := range text {
		if r != prev {
			run, prev = 0, r
		}
		if run++; run >= threshold {
			return true
		}
	}
	return false
}

// hasWordFlood reports the same word 3 or more times in a row, ignoring case.
func hasWordFlood(text string) bool {
	const threshold = 3

	words := strings.Fields(text)
	if len(words) < threshold {
		return false
	}

	run, prev := 0, ""
	for _, w := range words {
		if w = strings.ToLower(w); w != prev {
			run, prev = 0, w
		}
		if run++; run >= threshold {
			return true
		}
	}
	return false
}

func checkSpamPatterns(text string) Result {
	for _, sc := range spamChecks {
		if sc.match(text) {
			return Result{Flagged: true, Reason: ReasonSpam, Term: sc.name}
		}
	}
	return Result{}
}
