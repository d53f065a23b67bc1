package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p4kb/p4kb/engine/domain"
)

// --- mocks ---

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type mockSearcher struct {
	hits  []domain.Hit
	err   error
	lastK int
}

func (m *mockSearcher) QueryNearest(_ context.Context, _ []float32, k int) ([]domain.Hit, error) {
	m.lastK = k
	return m.hits, m.err
}

type mockChatter struct {
	reply      string
	err        error
	lastPrompt string
}

func (m *mockChatter) Chat(_ context.Context, _, prompt string) (string, error) {
	m.lastPrompt = prompt
	return m.reply, m.err
}

func hit(id, text, fileType string) domain.Hit {
	meta := map[string]string{domain.MetaChunkID: id}
	if fileType != "" {
		meta[domain.MetaFileType] = fileType
	}
	// Chunk ids are "{filename}-{index}".
	if i := strings.LastIndexByte(id, '-'); i > 0 {
		meta[domain.MetaFilename] = id[:i]
	}
	return domain.Hit{ID: id, Text: text, Meta: meta}
}

func newTestService(search *mockSearcher, chat Chatter) *Service {
	return New(&mockEmbedder{}, search, chat, DefaultOptions(), nil)
}

// --- tests ---

func TestRetrieve_EmptyStore(t *testing.T) {
	svc := newTestService(&mockSearcher{}, nil)
	docs, err := svc.Retrieve(context.Background(), "firewall ACL rules", 3, "")
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
}

func TestRetrieve_FewerResultsThanTopK(t *testing.T) {
	search := &mockSearcher{hits: []domain.Hit{hit("h-0", "TCP header format", "")}}
	svc := newTestService(search, nil)
	docs, err := svc.Retrieve(context.Background(), "firewall ACL rules", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 result (never fabricated up to top-k), got %d", len(docs))
	}
	if search.lastK != 3 {
		t.Fatalf("expected store queried with k=3, got %d", search.lastK)
	}
}

func TestRetrieve_OrderPreserved(t *testing.T) {
	search := &mockSearcher{hits: []domain.Hit{
		hit("a-0", "nearest", ""),
		hit("b-0", "second", ""),
		hit("c-0", "third", ""),
	}}
	docs, err := newTestService(search, nil).Retrieve(context.Background(), "q", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"nearest", "second", "third"}
	for i := range want {
		if docs[i] != want[i] {
			t.Fatalf("order broken at %d: %v", i, docs)
		}
	}
}

func TestRetrieve_TypeFilterShrinks(t *testing.T) {
	search := &mockSearcher{hits: []domain.Hit{
		hit("a-0", "tutorial text", "pdf"),
		hit("b-0", "exercise listing", "directory"),
		hit("c-0", "more tutorial", "pdf"),
	}}
	docs, err := newTestService(search, nil).Retrieve(context.Background(), "q", 3, "directory")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("post-filter must shrink, not backfill: got %d results", len(docs))
	}
	if docs[0] != "exercise listing" {
		t.Fatalf("wrong hit survived: %q", docs[0])
	}
}

func TestRetrieve_StoreErrorPropagates(t *testing.T) {
	search := &mockSearcher{err: errors.New("connection refused")}
	_, err := newTestService(search, nil).Retrieve(context.Background(), "q", 3, "")
	if !errors.Is(err, domain.ErrStoreQuery) {
		t.Fatalf("expected ErrStoreQuery, got %v", err)
	}
}

func TestRetrieve_EmbedErrorPropagates(t *testing.T) {
	svc := New(&mockEmbedder{err: errors.New("model offline")}, &mockSearcher{}, nil, DefaultOptions(), nil)
	if _, err := svc.Retrieve(context.Background(), "q", 3, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	search := &mockSearcher{}
	if _, err := newTestService(search, nil).Retrieve(context.Background(), "q", 0, ""); err != nil {
		t.Fatal(err)
	}
	if search.lastK != 3 {
		t.Fatalf("expected default top-k 3, got %d", search.lastK)
	}
}

func TestAnswer_UsesRetrievedContext(t *testing.T) {
	search := &mockSearcher{hits: []domain.Hit{hit("p4-cheat-sheet.pdf-0", "tables match on keys", "pdf")}}
	chat := &mockChatter{reply: "control MyIngress { }"}
	svc := newTestService(search, chat)

	code, sources, err := svc.Answer(context.Background(), "write a firewall")
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0] != "p4-cheat-sheet.pdf" {
		t.Fatalf("expected source filenames, got %v", sources)
	}
	if !strings.Contains(chat.lastPrompt, "tables match on keys") {
		t.Fatal("retrieved context missing from prompt")
	}
	if strings.HasPrefix(code, fallbackNote) {
		t.Fatal("fallback note present despite database match")
	}
}

func TestAnswer_SourcesAreFilenamesNotChunks(t *testing.T) {
	search := &mockSearcher{hits: []domain.Hit{
		hit("guide.pdf-0", "a long chunk body about parsers", "pdf"),
		hit("guide.pdf-1", "another chunk body about tables", "pdf"),
		hit("cheatsheet.pdf-0", "actions and controls", "pdf"),
	}}
	svc := newTestService(search, &mockChatter{reply: "parser MyParser { }"})

	_, sources, err := svc.Answer(context.Background(), "write a parser")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"guide.pdf", "cheatsheet.pdf"}
	if len(sources) != len(want) {
		t.Fatalf("sources = %v, want %v", sources, want)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Fatalf("sources = %v, want %v", sources, want)
		}
	}
	for _, s := range sources {
		if strings.Contains(s, "chunk body") {
			t.Fatalf("source %q leaks chunk text", s)
		}
	}
}

func TestAnswer_NotesMissingContext(t *testing.T) {
	chat := &mockChatter{reply: "control MyIngress { }"}
	svc := newTestService(&mockSearcher{}, chat)

	code, docs, err := svc.Answer(context.Background(), "write a firewall")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
	if !strings.HasPrefix(code, fallbackNote) {
		t.Fatal("expected fallback note when store contributed nothing")
	}
	if !strings.Contains(chat.lastPrompt, "No relevant documents found.") {
		t.Fatal("prompt should state that no documents were found")
	}
}

func TestAnswer_ChatError(t *testing.T) {
	chat := &mockChatter{err: errors.New("ollama unavailable")}
	svc := newTestService(&mockSearcher{}, chat)
	if _, _, err := svc.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswer_NoChatClient(t *testing.T) {
	svc := newTestService(&mockSearcher{}, nil)
	if _, _, err := svc.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error without chat client")
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename("Can you generate a P4 firewall?")
	if got != "Can_you_generate_a_P4_firewall_.p4" {
		t.Fatalf("unexpected filename %q", got)
	}

	long := strings.Repeat("a", 80)
	if got := SanitizeFilename(long); got != strings.Repeat("a", 50)+".p4" {
		t.Fatalf("expected 50-char stem, got %q", got)
	}

	if got := SanitizeFilename("ACL/rules: v2"); got != "ACL_rules__v2.p4" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestWriteAnswer(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteAnswer(dir, "simple firewall", "// p4 code")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "simple_firewall.p4") {
		t.Fatalf("unexpected path %q", path)
	}
}
