package ingest

import (
	"sort"
	"strings"
	"unicode"

	"github.com/derrickSh43/ingestion/core"
)

// DefaultChunkMaxChars bounds chunk text length when no override is given.
const DefaultChunkMaxChars = 800

// splitSentences splits on whitespace runs that follow ., !, or ?. The
// punctuation stays attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j == len(runes) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func hardSlice(text string, maxChars int) []string {
	var out []string
	for i := 0; i < len(text); i += maxChars {
		end := i + maxChars
		if end > len(text) {
			end = len(text)
		}
		if s := strings.TrimSpace(text[i:end]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitLongParagraph breaks a paragraph into units no longer than maxChars,
// preferring sentence boundaries and falling back to hard slicing when a
// single sentence exceeds the budget.
func splitLongParagraph(text string, maxChars int) []string {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	if len(t) <= maxChars {
		return []string{t}
	}
	sentences := splitSentences(t)
	if len(sentences) <= 1 {
		return hardSlice(t, maxChars)
	}
	var parts []string
	var cur strings.Builder
	for _, s := range sentences {
		add := s
		if cur.Len() > 0 {
			add = " " + s
		}
		if cur.Len() > 0 && cur.Len()+len(add) > maxChars {
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			cur.WriteString(s)
		} else {
			cur.WriteString(add)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimSpace(cur.String()))
	}
	var final []string
	for _, p := range parts {
		if len(p) <= maxChars {
			final = append(final, p)
		} else {
			final = append(final, hardSlice(p, maxChars)...)
		}
	}
	return final
}

// ChunkCanonicalObject greedily packs a canonical object's body paragraphs
// into chunks of at most maxChars characters, joined by blank lines. Chunk
// ids are deterministic in the chunk's own text and sequence.
func ChunkCanonicalObject(clo *core.CanonicalObject, maxChars int) []*core.Chunk {
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}
	var units []string
	for _, p := range clo.Body {
		units = append(units, splitLongParagraph(p, maxChars)...)
	}

	var chunks []*core.Chunk
	var cur []string
	curLen := 0
	seq := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(cur, "\n\n"))
		cur = nil
		curLen = 0
		if text == "" {
			return
		}
		chunks = append(chunks, &core.Chunk{
			ChunkID:           core.ChunkID(clo.Domain, clo.Provenance.ReleaseID, clo.ID, seq, text),
			Domain:            clo.Domain,
			ReleaseID:         clo.Provenance.ReleaseID,
			CanonicalObjectID: clo.ID,
			Sequence:          seq,
			Title:             clo.Title,
			Text:              text,
		})
		seq++
	}

	for _, u := range units {
		if u == "" {
			continue
		}
		addLen := len(u)
		if len(cur) > 0 {
			addLen += 2
		}
		if len(cur) > 0 && curLen+addLen > maxChars {
			flush()
			addLen = len(u)
		}
		cur = append(cur, u)
		curLen += addLen
	}
	flush()
	return chunks
}

// ChunkCanonicalObjects chunks each object in id order so the combined
// output is stable across runs.
func ChunkCanonicalObjects(clos []*core.CanonicalObject, maxChars int) []*core.Chunk {
	ordered := make([]*core.CanonicalObject, len(clos))
	copy(ordered, clos)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var out []*core.Chunk
	for _, clo := range ordered {
		out = append(out, ChunkCanonicalObject(clo, maxChars)...)
	}
	return out
}
