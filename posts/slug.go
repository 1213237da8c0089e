package posts

import (
	"regexp"
	"strings"
)

var (
	reWhitespace = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	reNonWord    = regexp.MustCompile(`[^\w-]+`)
	reHyphens    = regexp.MustCompile(`-{2,}`)
)

// MakeSlug derives the URL slug of a title: lowercase, whitespace runs
// become hyphens, characters outside [A-Za-z0-9_-] are dropped, hyphen runs
// collapse and leading/trailing hyphens are trimmed. Whitespace includes
// the Unicode space separators, so a pasted no-break space still splits words.
func MakeSlug(title string) string {
	s := strings.ToLower(title)
	s = reWhitespace.ReplaceAllString(s, "-")
	s = reNonWord.ReplaceAllString(s, "")
	s = reHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
