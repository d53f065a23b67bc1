package ingest

import (
	"context"

	"github.com/p4kb/p4kb/engine/domain"
)

// Extractor produces the raw UTF-8 text of a source document.
type Extractor interface {
	Extract(ctx context.Context, ref domain.DocumentRef) (string, error)
}

// Embedder maps text to a fixed-length vector. Deterministic for a given
// model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the durable chunk index the workflow writes to. InsertIfAbsent
// must be atomic per ID even under concurrent callers; ListIDs is a single
// listing call used for the bulk dedup snapshot.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec domain.Record) error
	ListIDs(ctx context.Context) (map[string]struct{}, error)
	ListMetadata(ctx context.Context) ([]map[string]string, error)
	Count(ctx context.Context) (uint64, error)
}

// Options tunes chunking and embedding for a Service.
type Options struct {
	ChunkSize    int
	MinChunkSize int
	// EmbedWorkers bounds parallel embedding calls. Zero means sequential.
	EmbedWorkers int
	// OnDocument, when set, is called by BuildDatabase after each attempted
	// document with the chunks added and the outcome. Documents skipped by
	// the filename-level dedup are not reported.
	OnDocument func(ref domain.DocumentRef, added int, err error)
}

// DefaultOptions returns the standard ingestion parameters.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		MinChunkSize: DefaultMinChunkSize,
		EmbedWorkers: 4,
	}
}
