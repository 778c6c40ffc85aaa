package memory

import "strings"

// recallPhrases are the fixed indicator phrases that gate memory
// search. Matching is a plain case-insensitive substring check; this
// trades recall for precision so most turns skip the history scan.
var recallPhrases = []string{
	"remember",
	"last time",
	"previously",
	"you said",
	"we discussed",
	"we talked",
	"my plan",
	"earlier",
	"before",
}

// NeedsRecall reports whether the user message suggests it refers to
// past conversations and memory search should run this turn.
func NeedsRecall(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range recallPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
