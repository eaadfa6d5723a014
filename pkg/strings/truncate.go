package strings

import (
	"strings"
)

// DefaultSummaryLen is the width error and description cells are cut to in
// tabular output.
const DefaultSummaryLen = 80

// MinSummaryLen is the smallest limit Summarize honours. Smaller limits leave
// no room for content plus "...".
const MinSummaryLen = 4

// Summarize collapses s to a single line and cuts it to at most limit runes,
// ending a cut string with "...".
//
// Runs of whitespace, including newlines from multi-line failure messages,
// become single spaces. Limits below MinSummaryLen are raised to it.
func Summarize(s string, limit int) string {
	if limit < MinSummaryLen {
		limit = MinSummaryLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return s
}

// Labelled prefixes msg with a bracketed label, as in "[timeout] no
// message". An empty msg stays empty and an empty label adds nothing.
func Labelled(label, msg string) string {
	if msg == "" || label == "" {
		return msg
	}
	return "[" + label + "] " + msg
}
