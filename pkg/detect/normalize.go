// Package detect implements the pure detection functions of the honeypot:
// scam classification over a single message and IOC extraction over a full
// conversation history. Everything here is stateless and safe for concurrent
// use.
package detect

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scam texts routinely carry compatibility characters (fullwidth letters,
// ligatures) and zero-width joiners to dodge keyword filters. The classifier
// folds those out before matching. The extractor deliberately does NOT use
// this: reported IOCs must keep the exact spelling seen on the wire.
var normalizer = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.Predicate(isZeroWidth)),
)

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}

// Normalize folds unicode compatibility forms, strips zero-width characters
// and lowercases the text for pattern matching.
func Normalize(text string) string {
	out, _, err := transform.String(normalizer, text)
	if err != nil {
		// Transform failures leave the original text in play; matching on
		// raw input is still better than matching on nothing.
		out = text
	}
	return strings.ToLower(out)
}
