package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("", 512, 100); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := ChunkText("   \n\t  ", 512, 100); got != nil {
		t.Fatalf("expected nil for whitespace input, got %v", got)
	}
}

func TestChunkText_Bounds(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 60)
	frags := ChunkText(text, 120, 30)
	if len(frags) == 0 {
		t.Fatal("expected fragments")
	}
	for i, f := range frags {
		n := utf8.RuneCountInString(f)
		if n > 120 {
			t.Errorf("fragment %d exceeds size: %d chars", i, n)
		}
		if n <= 30 {
			t.Errorf("fragment %d below minimum: %d chars", i, n)
		}
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("match action table parser deparser header metadata ", 40)
	a := ChunkText(text, 256, 64)
	b := ChunkText(text, 256, 64)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fragment %d differs", i)
		}
	}
}

func TestChunkText_PreservesWordOrder(t *testing.T) {
	text := strings.Repeat("ingress egress pipeline control ", 50)
	frags := ChunkText(text, 100, 10)

	joined := strings.Join(frags, " ")
	want := strings.Join(strings.Fields(text), " ")
	if !strings.HasPrefix(want, joined) {
		t.Fatal("rejoined fragments are not a prefix of the normalized input")
	}

	// No fragment may split a word.
	vocab := map[string]bool{"ingress": true, "egress": true, "pipeline": true, "control": true}
	for i, f := range frags {
		for _, w := range strings.Fields(f) {
			if !vocab[w] {
				t.Errorf("fragment %d contains split word %q", i, w)
			}
		}
	}
}

func TestChunkText_HardSplitsOversizedWord(t *testing.T) {
	long := strings.Repeat("x", 75)
	frags := ChunkText(long, 30, 0)
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}
	if frags[0] != strings.Repeat("x", 30) || frags[1] != strings.Repeat("x", 30) || frags[2] != strings.Repeat("x", 15) {
		t.Fatalf("unexpected hard-split fragments: %v", frags)
	}
}

func TestChunkText_DropsShortTail(t *testing.T) {
	// 210 five-char words: two full fragments of 509 chars each, then a
	// 29-char remainder that falls under the minimum and is dropped.
	text := strings.TrimSpace(strings.Repeat("word ", 210))
	frags := ChunkText(text, 512, 100)
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	for i, f := range frags {
		if n := len(f); n > 512 || n <= 100 {
			t.Errorf("fragment %d has width %d", i, n)
		}
	}
}

func TestChunkText_AllFragmentsTooShort(t *testing.T) {
	if got := ChunkText("short text", 512, 100); got != nil {
		t.Fatalf("expected nil when every fragment is under the minimum, got %v", got)
	}
}

func TestChunkText_DefaultsOnBadParams(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 210))
	a := ChunkText(text, 0, -1)
	b := ChunkText(text, DefaultChunkSize, 0)
	if len(a) != len(b) {
		t.Fatalf("size fallback differs: %d vs %d", len(a), len(b))
	}
}
