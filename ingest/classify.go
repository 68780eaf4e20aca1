package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/derrickSh43/ingestion/core"
)

// Classification is the scoring verdict for a single section. Reasons record
// which rules fired, in rule order, for diagnostics.
type Classification struct {
	Instructional bool
	Score         float64
	Reasons       []string
}

var wordRE = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]*`)

var nonInstructionalPhrases = []string{
	"table of contents",
	"toc",
	"subscribe",
	"sign in",
	"log in",
	"login",
	"cookie policy",
	"privacy policy",
	"terms of service",
	"copyright",
	"all rights reserved",
	"newsletter",
	"advertisement",
	"sponsored",
	"share this",
	"edit this page",
	"last updated",
}

var nonInstructionalHints = []string{
	"next",
	"previous",
	"page",
	"breadcrumbs",
	"cookie",
	"consent",
	"tracking",
	"analytics",
	"github",
	"twitter",
	"linkedin",
}

var instructionalVerbs = map[string]struct{}{
	"run":        {},
	"use":        {},
	"create":     {},
	"configure":  {},
	"deploy":     {},
	"install":    {},
	"set":        {},
	"enable":     {},
	"disable":    {},
	"define":     {},
	"apply":      {},
	"initialize": {},
	"init":       {},
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ClassifySection scores a section as instructional or not. The score is a
// sum of additive rules over kind, title, and body text; sections scoring at
// least 0.5 are kept.
func ClassifySection(sec *core.Section) Classification {
	kind := normalizeText(sec.Kind)
	title := normalizeText(sec.Title)
	text := normalizeText(sec.CleanText)

	if text == "" {
		return Classification{Instructional: false, Score: -10.0, Reasons: []string{"empty_text"}}
	}

	var reasons []string
	score := 0.0

	switch kind {
	case "howto", "example", "definition":
		score += 3.0
		reasons = append(reasons, "kind:"+kind)
	case "note", "explanation":
		score += 1.0
		reasons = append(reasons, "kind:"+kind)
	}

	for _, phrase := range nonInstructionalPhrases {
		if strings.Contains(title, phrase) || strings.Contains(text, phrase) {
			score -= 6.0
			reasons = append(reasons, "non_instr_phrase:"+phrase)
		}
	}
	for _, hint := range nonInstructionalHints {
		if strings.Contains(title, hint) || strings.Contains(text, hint) {
			score -= 1.0
			reasons = append(reasons, "non_instr_hint:"+hint)
		}
	}

	if strings.Contains(title, "table of contents") || strings.HasPrefix(text, "table of contents") {
		score -= 8.0
		reasons = append(reasons, "toc")
	}

	words := wordRE.FindAllString(text, -1)
	verbHits := 0
	for _, w := range words {
		if _, ok := instructionalVerbs[strings.ToLower(w)]; ok {
			verbHits++
		}
	}
	if verbHits > 0 {
		score += min(2.0, 0.5*float64(verbHits))
		reasons = append(reasons, fmt.Sprintf("verb_hits:%d", verbHits))
	}

	if len(words) > 0 {
		short := 0
		for _, w := range words {
			if len(w) <= 3 {
				short++
			}
		}
		ratio := float64(short) / float64(len(words))
		if ratio > 0.55 && len(words) >= 12 {
			score -= 2.0
			reasons = append(reasons, "nav_like_short_word_ratio")
		}
	}

	if len(text) < 40 {
		score -= 1.5
		reasons = append(reasons, "too_short")
	}

	return Classification{Instructional: score >= 0.5, Score: score, Reasons: reasons}
}

// Dropped pairs a rejected section with the classification that rejected it.
type Dropped struct {
	Section        *core.Section
	Classification Classification
}

// FilterInstructional partitions sections by classification verdict.
func FilterInstructional(sections []*core.Section) (kept []*core.Section, dropped []Dropped) {
	for _, sec := range sections {
		cls := ClassifySection(sec)
		if cls.Instructional {
			kept = append(kept, sec)
		} else {
			dropped = append(dropped, Dropped{Section: sec, Classification: cls})
		}
	}
	return kept, dropped
}
