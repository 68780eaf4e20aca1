package ingest

import (
	"html"
	"regexp"
	"strings"
)

var (
	reScript          = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle           = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags            = regexp.MustCompile(`<[^>]+>`)
	reWhitespace      = regexp.MustCompile(`\s+`)
	reSpaceBeforePunc = regexp.MustCompile(`\s+([.,!?:;])`)
)

// CleanHTMLText deterministically reduces an HTML fragment to normalized
// plain text: script/style blocks removed, tags stripped, entities decoded,
// whitespace collapsed, stray spaces before punctuation removed.
func CleanHTMLText(htmlText string) string {
	if htmlText == "" {
		return ""
	}
	t := reScript.ReplaceAllString(htmlText, " ")
	t = reStyle.ReplaceAllString(t, " ")
	t = reTags.ReplaceAllString(t, " ")
	t = html.UnescapeString(t)
	t = reWhitespace.ReplaceAllString(t, " ")
	t = reSpaceBeforePunc.ReplaceAllString(t, "$1")
	return strings.TrimSpace(t)
}
