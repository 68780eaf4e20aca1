package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTMLText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"strips tags", "<p>Run the <b>installer</b></p>", "Run the installer"},
		{"drops script", "<script>var x = 1;</script>hello", "hello"},
		{"drops style", "<style>p { color: red }</style>hello", "hello"},
		{"decodes entities", "use &amp; enjoy", "use & enjoy"},
		{"collapses whitespace", "a\n\n  b\t c", "a b c"},
		{"space before punctuation", "run it , then stop .", "run it, then stop."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanHTMLText(tt.in))
		})
	}
}

func TestDistillSectionsGroupsUnderHeadings(t *testing.T) {
	html := `
<html><body>
<nav><ul><li>Ignore this navigation entry completely</li></ul></nav>
<h2>How to install the service</h2>
<p>Run the installer with default options enabled.</p>
<p>Configure the data directory before the first start.</p>
<h2>Example usage</h2>
<pre>ingestion capture --domain docs</pre>
<footer><p>All rights reserved, every year.</p></footer>
</body></html>`

	sections := DistillSections(html, "docs", "srchash1")
	require.Len(t, sections, 2)

	first := sections[0]
	assert.Equal(t, "How to install the service", first.Title)
	assert.Equal(t, "howto", first.Kind)
	assert.Contains(t, first.CleanText, "Run the installer")
	assert.Contains(t, first.CleanText, "Configure the data directory")
	assert.True(t, strings.HasPrefix(first.SectionID, "sec_"))

	second := sections[1]
	assert.Equal(t, "Example usage", second.Title)
	assert.Equal(t, "example", second.Kind)
	assert.NotContains(t, second.CleanText, "navigation")
	assert.NotContains(t, second.CleanText, "rights reserved")
}

func TestDistillSectionsFallbackWithoutHeadings(t *testing.T) {
	html := `<p>Install the package first.</p><p>Then configure the endpoint.</p>`

	sections := DistillSections(html, "docs", "srchash1")
	require.Len(t, sections, 1)
	assert.Empty(t, sections[0].Title)
	assert.Equal(t, "explanation", sections[0].Kind)
	assert.Equal(t, "Install the package first.\n\nThen configure the endpoint.", sections[0].CleanText)
}

func TestDistillSectionsDeduplicatesBlocks(t *testing.T) {
	html := `<p>Repeated paragraph about setup.</p><p>Repeated paragraph about setup.</p>`

	sections := DistillSections(html, "docs", "srchash1")
	require.Len(t, sections, 1)
	assert.Equal(t, "Repeated paragraph about setup.", sections[0].CleanText)
}

func TestDistillSectionsDropsBoilerplate(t *testing.T) {
	html := `<p>Home</p><p>Edit this page</p><p>ok</p><p>A real paragraph with actual content.</p>`

	sections := DistillSections(html, "docs", "srchash1")
	require.Len(t, sections, 1)
	assert.Equal(t, "A real paragraph with actual content.", sections[0].CleanText)
}

func TestDistillSectionsEmptyInput(t *testing.T) {
	assert.Empty(t, DistillSections("", "docs", "srchash1"))
	assert.Empty(t, DistillSections("<div>no block elements here</div>", "docs", "srchash1"))
}

func TestDistillSectionsDeterministicIDs(t *testing.T) {
	html := `<h1>Title</h1><p>Stable body paragraph for identity checks.</p>`

	a := DistillSections(html, "docs", "srchash1")
	b := DistillSections(html, "docs", "srchash1")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].SectionID, b[0].SectionID)

	c := DistillSections(html, "docs", "otherhash")
	require.Len(t, c, 1)
	assert.NotEqual(t, a[0].SectionID, c[0].SectionID)
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		title string
		text  string
		want  string
	}{
		{"Example usage", "body", "example"},
		{"How to deploy", "body", "howto"},
		{"Howto: deploy", "body", "howto"},
		{"Note on limits", "body", "note"},
		{"Warning about retries", "body", "note"},
		{"Definition of a release", "body", "definition"},
		{"", "Example: run the tool", "example"},
		{"Architecture", "body", "explanation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, guessKind(tt.title, tt.text), "title=%q", tt.title)
	}
}
