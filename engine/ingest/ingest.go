// Package ingest implements the ingestion workflow: extract a document's
// text, chunk it, deduplicate against the store's existing chunk IDs, embed
// the survivors, and persist them. Repeated ingestion of unchanged content
// is a no-op after the first successful run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/pkg/fn"
)

// Service orchestrates Extractor, chunker, Embedder, and Store. All
// collaborators are injected; the service holds no hidden globals.
type Service struct {
	extract Extractor
	embed   Embedder
	store   Store
	opts    Options
	log     *slog.Logger
}

// NewService creates an ingestion Service.
func NewService(extract Extractor, embed Embedder, store Store, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	return &Service{extract: extract, embed: embed, store: store, opts: opts, log: log}
}

// Ingest runs one document through the full pipeline and returns the number
// of chunks actually added. A fully deduplicated document returns (0, nil).
//
// Insertions are not transactional: if one insert fails, earlier inserts in
// the same call stand, the count reflects them, and the error wraps
// domain.ErrStoreWrite. The missing chunks are picked up on the next run.
func (s *Service) Ingest(ctx context.Context, ref domain.DocumentRef) (int, error) {
	if err := domain.ValidateRef(ref); err != nil {
		return 0, err
	}

	text, err := s.extract.Extract(ctx, ref)
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		return 0, domain.NewDocumentError(ref.Name, "extract", err)
	}

	fragments := ChunkText(text, s.opts.ChunkSize, s.opts.MinChunkSize)
	if len(fragments) == 0 {
		s.log.Info("ingest: nothing ingestible", "doc", ref.Name)
		return 0, nil
	}

	// One listing call for the whole batch; the snapshot is taken before
	// any parallel embedding starts.
	existing, err := s.store.ListIDs(ctx)
	if err != nil {
		return 0, domain.NewDocumentError(ref.Name, "list ids", err)
	}

	candidates := s.buildChunks(ref, fragments)
	fresh := fn.Filter(candidates, func(c domain.Chunk) bool {
		_, ok := existing[c.ID]
		return !ok
	})
	if len(fresh) == 0 {
		s.log.Info("ingest: all chunks already stored", "doc", ref.Name, "chunks", len(candidates))
		return 0, nil
	}

	// Embedding dominates ingestion cost, so it runs with bounded
	// parallelism. ParMapResult preserves input order, which keeps
	// chunk_index reflecting document order rather than completion order.
	results := fn.ParMapResult(fresh, s.opts.EmbedWorkers, func(c domain.Chunk) fn.Result[domain.Record] {
		emb, err := s.embed.Embed(ctx, c.Text)
		if err != nil {
			return fn.Err[domain.Record](fmt.Errorf("embed chunk %s: %w", c.ID, err))
		}
		return fn.Ok(domain.Record{ID: c.ID, Text: c.Text, Embedding: emb, Meta: c.Meta})
	})
	records, err := fn.Collect(results).Unwrap()
	if err != nil {
		return 0, domain.NewDocumentError(ref.Name, "embed", err)
	}

	added := 0
	for _, rec := range records {
		if err := s.store.InsertIfAbsent(ctx, rec); err != nil {
			return added, domain.NewDocumentError(ref.Name, "store",
				fmt.Errorf("%w: chunk %s: %w", domain.ErrStoreWrite, rec.ID, err))
		}
		added++
	}

	s.log.Info("ingest: done", "doc", ref.Name, "added", added, "skipped", len(candidates)-len(fresh))
	return added, nil
}

// buildChunks assigns IDs and metadata to surviving fragments, in order.
func (s *Service) buildChunks(ref domain.DocumentRef, fragments []string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(fragments))
	for i, text := range fragments {
		id := domain.ChunkID(ref.Name, i)
		meta := map[string]string{
			domain.MetaFilename:   ref.Name,
			domain.MetaChunkID:    id,
			domain.MetaChunkIndex: strconv.Itoa(i),
		}
		if ref.Path != "" {
			meta[domain.MetaFilePath] = ref.Path
		}
		if ref.URL != "" {
			meta[domain.MetaSourceURL] = ref.URL
		}
		if ref.FileType != "" {
			meta[domain.MetaFileType] = string(ref.FileType)
		}
		chunks[i] = domain.Chunk{ID: id, Text: text, Index: i, Meta: meta}
	}
	return chunks
}

// BuildDatabase ingests every ref not yet represented in the store. The
// document-level check against stored filenames runs before any extraction
// or chunking, so already-ingested documents cost one metadata listing and
// nothing more. Extraction and store-write failures are logged with the
// document name and the batch continues; other failures abort.
func (s *Service) BuildDatabase(ctx context.Context, refs []domain.DocumentRef) (int, error) {
	metas, err := s.store.ListMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: list metadata: %w", err)
	}
	stored := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if name := m[domain.MetaFilename]; name != "" {
			stored[name] = struct{}{}
		}
	}

	pending := fn.Filter(refs, func(r domain.DocumentRef) bool {
		_, ok := stored[r.Name]
		return !ok
	})
	if len(pending) == 0 {
		s.log.Info("ingest: no new documents")
		return 0, nil
	}

	total := 0
	for _, ref := range pending {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		added, err := s.Ingest(ctx, ref)
		total += added
		if s.opts.OnDocument != nil {
			s.opts.OnDocument(ref, added, err)
		}
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrExtraction):
			s.log.Warn("ingest: extraction failed, skipping document", "doc", ref.Name, "error", err)
		case errors.Is(err, domain.ErrStoreWrite):
			s.log.Warn("ingest: partial write, will retry on next run", "doc", ref.Name, "added", added, "error", err)
		default:
			return total, err
		}
	}

	s.log.Info("ingest: database update complete", "documents", len(pending), "chunks_added", total)
	return total, nil
}
