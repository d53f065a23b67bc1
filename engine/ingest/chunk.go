package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum chunk width in characters.
	DefaultChunkSize = 512
	// DefaultMinChunkSize is the width below which a fragment is dropped.
	DefaultMinChunkSize = 100
)

// ChunkText splits text into ordered fragments of at most size characters,
// breaking on whitespace. A single word wider than size is hard-split.
// Fragments of minSize characters or fewer are dropped, so a short tail
// (or a short document) can legitimately produce nothing.
//
// Pure and deterministic: identical input and parameters always yield the
// same fragments, which keeps derived chunk IDs stable across runs.
func ChunkText(text string, size, minSize int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if minSize < 0 {
		minSize = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var frags []string
	var b strings.Builder
	width := 0

	flush := func() {
		if width > 0 {
			frags = append(frags, b.String())
			b.Reset()
			width = 0
		}
	}

	for _, w := range words {
		wlen := utf8.RuneCountInString(w)
		if wlen > size {
			flush()
			r := []rune(w)
			for len(r) > size {
				frags = append(frags, string(r[:size]))
				r = r[size:]
			}
			w = string(r)
			wlen = len(r)
			if wlen == 0 {
				continue
			}
		}

		sep := 0
		if width > 0 {
			sep = 1
		}
		if width+sep+wlen > size {
			flush()
			sep = 0
		}
		if sep == 1 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		width += sep + wlen
	}
	flush()

	kept := frags[:0]
	for _, f := range frags {
		if utf8.RuneCountInString(f) > minSize {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
