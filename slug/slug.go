package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars = regexp.MustCompile("[^a-z0-9-]+")
	multiHyphen  = regexp.MustCompile("-+")
	wordSplit    = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// Generate creates a URL-friendly slug from a string
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = transliterate(s)

	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	s = nonSlugChars.ReplaceAllString(s, "")
	s = multiHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	// Limit length to 100 characters
	if len(s) > 100 {
		s = s[:100]
		s = strings.TrimRight(s, "-")
	}

	return s
}

// GenerateWithFallback generates a slug, falling back to a default if the input produces an empty slug
func GenerateWithFallback(s, fallback string) string {
	slug := Generate(s)
	if slug == "" {
		return Generate(fallback)
	}
	return slug
}

// Words shorter than five characters rarely carry topical meaning, but a
// few longer function words slip through that cutoff.
var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "around": true,
	"because": true, "before": true, "being": true, "between": true,
	"could": true, "every": true, "might": true, "other": true,
	"should": true, "their": true, "there": true, "these": true,
	"thing": true, "things": true, "those": true, "through": true,
	"under": true, "where": true, "which": true, "while": true,
	"without": true, "would": true, "your": true,
}

// Keywords extracts up to max meaningful words from a string: words longer
// than four characters that are not stop words, lowercased, in original
// order. Used to derive fallback search queries from titles.
func Keywords(s string, max int) []string {
	if s == "" || max <= 0 {
		return nil
	}

	s = transliterate(strings.ToLower(s))

	var out []string
	for _, w := range wordSplit.Split(s, -1) {
		if len(w) <= 4 || stopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) >= max {
			break
		}
	}
	return out
}

// transliterate converts unicode characters to ASCII equivalents
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
