// Package rag implements the retrieval workflow and the glue that feeds
// retrieved context to a generation model: embed a query, run nearest-
// neighbor search against the chunk store, post-filter by source type, and
// optionally produce P4 code via the chat model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/pkg/fn"
)

// Embedder maps the query to the same vector space as stored chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the store's nearest-neighbor query.
type Searcher interface {
	QueryNearest(ctx context.Context, embedding []float32, k int) ([]domain.Hit, error)
}

// Chatter generates text from a system prompt and a user prompt.
type Chatter interface {
	Chat(ctx context.Context, system, prompt string) (string, error)
}

// Options configures retrieval behaviour.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
	SystemPrompt  string
}

// DefaultOptions returns the standard retrieval parameters.
func DefaultOptions() Options {
	return Options{
		TopK:          3,
		SearchTimeout: 5 * time.Second,
		SystemPrompt:  defaultSystemPrompt,
	}
}

// Service is the retrieval orchestration service. The chat client may be
// nil when only Retrieve is used.
type Service struct {
	embed  Embedder
	search Searcher
	chat   Chatter
	opts   Options
	log    *slog.Logger
}

// New creates a retrieval Service.
func New(embed Embedder, search Searcher, chat Chatter, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Service{embed: embed, search: search, chat: chat, opts: opts, log: log}
}

// Retrieve returns the texts of the chunks nearest the query, best first.
// An empty store yields an empty slice and no error; a failing store query
// yields an error wrapping domain.ErrStoreQuery, never a silent empty set.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, typeFilter string) ([]string, error) {
	hits, err := s.RetrieveHits(ctx, query, topK, typeFilter)
	if err != nil {
		return nil, err
	}
	return fn.Map(hits, func(h domain.Hit) string { return h.Text }), nil
}

// RetrieveHits is Retrieve with scores and metadata attached.
//
// typeFilter is applied after the top-k selection: hits whose file_type
// metadata does not match are removed and the result set shrinks below
// topK rather than being backfilled with further candidates.
func (s *Service) RetrieveHits(ctx context.Context, query string, topK int, typeFilter string) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}

	embedStage := fn.TracedStage("rag.embed", func(ctx context.Context, q string) fn.Result[[]float32] {
		emb, err := s.embed.Embed(ctx, q)
		if err != nil {
			return fn.Err[[]float32](fmt.Errorf("rag: embed query: %w", err))
		}
		return fn.Ok(emb)
	})
	searchStage := fn.TracedStage("rag.search", func(ctx context.Context, emb []float32) fn.Result[[]domain.Hit] {
		searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
		hits, err := s.search.QueryNearest(searchCtx, emb, topK)
		if err != nil {
			return fn.Err[[]domain.Hit](fmt.Errorf("rag: %w: %w", domain.ErrStoreQuery, err))
		}
		return fn.Ok(hits)
	})

	hits, err := fn.Then(embedStage, searchStage)(ctx, query).Unwrap()
	if err != nil {
		return nil, err
	}

	if typeFilter != "" {
		hits = fn.Filter(hits, func(h domain.Hit) bool {
			return h.Meta[domain.MetaFileType] == typeFilter
		})
	}

	s.log.Info("rag: retrieved", "query_len", len(query), "hits", len(hits), "type_filter", typeFilter)
	return hits, nil
}
