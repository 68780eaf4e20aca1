package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/derrickSh43/ingestion/core"
)

// containerTags are stripped wholesale before block extraction: navigation
// chrome never contributes section candidates.
var containerTags = []string{"nav", "footer", "header", "aside"}

// blockTags are the elements whose inner text becomes section material.
// Headings start a new section; the rest accumulate under the current one.
var blockTags = []string{"h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "pre", "code", "blockquote"}

var (
	containerRes = compileTagRes(containerTags)
	blockRes     = compileTagRes(blockTags)
)

func compileTagRes(tags []string) map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(tags))
	for _, tag := range tags {
		res[tag] = regexp.MustCompile(`(?is)<\s*` + tag + `\b[^>]*>([\s\S]*?)<\s*/\s*` + tag + `\s*>`)
	}
	return res
}

type block struct {
	tag   string
	start int
	end   int
	text  string
}

// maskContainers blanks out every nav/footer/header/aside element, replacing
// its characters with spaces so that block offsets in the remainder are
// unchanged. Newlines are preserved.
func maskContainers(rawHTML string) string {
	var ranges [][2]int
	for _, tag := range containerTags {
		for _, m := range containerRes[tag].FindAllStringIndex(rawHTML, -1) {
			ranges = append(ranges, [2]int{m[0], m[1]})
		}
	}
	if len(ranges) == 0 {
		return rawHTML
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i][0] != ranges[j][0] {
			return ranges[i][0] < ranges[j][0]
		}
		return ranges[i][1] < ranges[j][1]
	})
	chars := []byte(rawHTML)
	for _, r := range ranges {
		for i := r[0]; i < r[1] && i < len(chars); i++ {
			if chars[i] != '\n' {
				chars[i] = ' '
			}
		}
	}
	return string(chars)
}

var boilerplateText = map[string]struct{}{
	"home":           {},
	"docs":           {},
	"edit this page": {},
	"last updated":   {},
}

func isBoilerplate(cleanText string) bool {
	s := strings.ToLower(strings.TrimSpace(cleanText))
	if s == "" {
		return true
	}
	if _, ok := boilerplateText[s]; ok {
		return true
	}
	return len(s) < 3
}

func guessKind(title, text string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	switch {
	case strings.Contains(t, "example"):
		return "example"
	case strings.HasPrefix(t, "how to") || strings.Contains(t, "how-to") || strings.Contains(t, "howto"):
		return "howto"
	case strings.HasPrefix(t, "note") || strings.HasPrefix(t, "warning") || strings.HasPrefix(t, "caution"):
		return "note"
	case strings.Contains(t, "definition"):
		return "definition"
	case strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "example:"):
		return "example"
	default:
		return "explanation"
	}
}

// extractBlocks finds all block-level elements in document order, cleans
// their inner text, and drops boilerplate and exact duplicates.
func extractBlocks(rawHTML string) []block {
	if rawHTML == "" {
		return nil
	}
	masked := maskContainers(rawHTML)
	var blocks []block
	for _, tag := range blockTags {
		for _, m := range blockRes[tag].FindAllStringSubmatchIndex(masked, -1) {
			clean := CleanHTMLText(masked[m[2]:m[3]])
			if isBoilerplate(clean) {
				continue
			}
			blocks = append(blocks, block{tag: tag, start: m[0], end: m[1], text: clean})
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].start != blocks[j].start {
			return blocks[i].start < blocks[j].start
		}
		return blocks[i].end < blocks[j].end
	})
	seen := make(map[string]struct{}, len(blocks))
	deduped := blocks[:0]
	for _, b := range blocks {
		if _, ok := seen[b.text]; ok {
			continue
		}
		seen[b.text] = struct{}{}
		deduped = append(deduped, b)
	}
	return deduped
}

// DistillSections turns raw HTML into section candidates. Heading blocks
// start a new section titled by the heading; intervening blocks accumulate
// as the section body, joined by blank lines. If no heading structure
// survives, all remaining blocks collapse into a single untitled section.
func DistillSections(rawHTML, domain, sourceHash string) []*core.Section {
	blocks := extractBlocks(rawHTML)
	var sections []*core.Section
	var currentTitle string
	var currentParts []string

	flush := func() {
		defer func() {
			currentTitle = ""
			currentParts = nil
		}()
		if len(currentParts) == 0 {
			return
		}
		cleanText := strings.TrimSpace(strings.Join(currentParts, "\n\n"))
		if cleanText == "" {
			return
		}
		kind := guessKind(currentTitle, cleanText)
		sections = append(sections, &core.Section{
			SectionID: core.SectionID(domain, sourceHash, kind, currentTitle, cleanText),
			Domain:    domain,
			Kind:      kind,
			Title:     currentTitle,
			CleanText: cleanText,
		})
	}

	for _, b := range blocks {
		if strings.HasPrefix(b.tag, "h") {
			flush()
			currentTitle = b.text
			continue
		}
		currentParts = append(currentParts, b.text)
	}
	flush()

	if len(sections) == 0 && len(blocks) > 0 {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			parts = append(parts, b.text)
		}
		cleanText := strings.TrimSpace(strings.Join(parts, "\n\n"))
		kind := guessKind("", cleanText)
		sections = []*core.Section{{
			SectionID: core.SectionID(domain, sourceHash, kind, "", cleanText),
			Domain:    domain,
			Kind:      kind,
			CleanText: cleanText,
		}}
	}
	return sections
}
