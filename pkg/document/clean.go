package document

import (
	"regexp"
	"strings"
)

// PDF extraction leaves artifacts behind: form-feed underscores, bullet
// glyphs, typographic quotes and dashes, zero-width characters. CleanText
// normalizes them so embeddings see plain ASCII prose.
var (
	reUnderscores   = regexp.MustCompile(`_+`)
	reMultiSpace    = regexp.MustCompile(`\s{2,}`)
	reNumberedItem  = regexp.MustCompile(`(\d+\.)\s`)
	reBullets       = regexp.MustCompile(`[●■○]`)
	reSmartQuotes   = regexp.MustCompile("[“”‘’«»]")
	reDashes        = regexp.MustCompile("[–—−]")
	reNonASCII      = regexp.MustCompile(`[^\x00-\x7F]+`)
	reZeroWidth     = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	reAnyWhitespace = regexp.MustCompile(`\s+`)
)

// CleanText normalizes raw extracted text for embedding.
func CleanText(text string) string {
	text = reUnderscores.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n", " ")
	text = reMultiSpace.ReplaceAllString(text, " ")
	text = reNumberedItem.ReplaceAllString(text, "\n$1 ")
	text = reBullets.ReplaceAllString(text, "")
	text = reSmartQuotes.ReplaceAllString(text, `"`)
	text = reDashes.ReplaceAllString(text, "-")
	text = reZeroWidth.ReplaceAllString(text, "")
	text = reNonASCII.ReplaceAllString(text, "")
	text = reAnyWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
