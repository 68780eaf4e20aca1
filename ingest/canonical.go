package ingest

import (
	"sort"
	"strings"

	"github.com/derrickSh43/ingestion/core"
)

const maxTitleChars = 120

func titleFromSection(sec *core.Section) string {
	if t := strings.TrimSpace(sec.Title); t != "" {
		return t
	}
	for _, ln := range strings.Split(strings.TrimSpace(sec.CleanText), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			if len(ln) > maxTitleChars {
				return ln[:maxTitleChars]
			}
			return ln
		}
	}
	return "Untitled"
}

func bodyFromCleanText(cleanText string) []string {
	var body []string
	for _, p := range strings.Split(cleanText, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			body = append(body, p)
		}
	}
	return body
}

// CanonicalizeSections turns kept sections into canonical objects with
// deterministic ids and provenance. Sections are processed in section id
// order so the output is stable regardless of input ordering.
func CanonicalizeSections(sections []*core.Section, domain, sourceID, releaseID string) []*core.CanonicalObject {
	ordered := make([]*core.Section, len(sections))
	copy(ordered, sections)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SectionID < ordered[j].SectionID })

	out := make([]*core.CanonicalObject, 0, len(ordered))
	for _, sec := range ordered {
		out = append(out, &core.CanonicalObject{
			ID:     core.CanonicalObjectID(domain, releaseID, sourceID, sec.SectionID),
			Domain: domain,
			Title:  titleFromSection(sec),
			Body:   bodyFromCleanText(sec.CleanText),
			Provenance: core.Provenance{
				SourceID:  sourceID,
				ReleaseID: releaseID,
			},
		})
	}
	return out
}
