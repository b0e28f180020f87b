package vocab

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize returns the dedup form of word: case-folded, trimmed, and with
// inner whitespace collapsed to single spaces.
func Normalize(word string) string {
	// Casers keep state and must not be shared between goroutines.
	folded := cases.Fold().String(word)
	return strings.Join(strings.Fields(folded), " ")
}
