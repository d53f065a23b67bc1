// Command ingest builds the P4 knowledge base: it gathers document refs
// from a manifest, a local directory, and the p4lang tutorials listing,
// and runs each through the ingestion pipeline into Qdrant. With -nats it
// instead consumes refs from the ingestion queue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/engine/extract"
	"github.com/p4kb/p4kb/engine/ingest"
	"github.com/p4kb/p4kb/engine/semantic"
	"github.com/p4kb/p4kb/pkg/fn"
	"github.com/p4kb/p4kb/pkg/metrics"
	"github.com/p4kb/p4kb/pkg/natsutil"
	"github.com/p4kb/p4kb/pkg/ollama"
)

var met = metrics.New()

var (
	mDocsTotal = func(source string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("p4kb_ingest_docs_total", "source", source), "Documents ingested")
	}
	mErrorsTotal = func(stage string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("p4kb_ingest_errors_total", "stage", stage), "Ingestion errors")
	}
	mChunksAdded = met.Counter("p4kb_ingest_chunks_added_total", "Chunks written to the vector store")
	mBuildDur    = met.Histogram("p4kb_ingest_build_duration_seconds", "Full database build time", nil)
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		manifest    = flag.String("manifest", "", "JSON manifest of document refs")
		dataDir     = flag.String("dir", "", "local directory of .pdf and .txt documents")
		exercises   = flag.Bool("exercises", false, "include p4lang tutorial exercises")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "p4kb", "Qdrant collection name")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		workers     = flag.Int("workers", 4, "parallel embedding workers")
		chunkSize   = flag.Int("chunk-size", ingest.DefaultChunkSize, "max chunk size in characters")
		minChunk    = flag.Int("min-chunk", ingest.DefaultMinChunkSize, "drop chunks at or below this size")
		natsURL     = flag.String("nats", "", "NATS URL; when set, consume refs from the queue instead")
		metricsPort = flag.Int("metrics-port", 9091, "metrics HTTP port")
		reset       = flag.Bool("reset", false, "drop the collection before ingesting")
	)
	flag.Parse()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met.CollectRuntime(15*time.Second, ctx.Done())
	met.ServeAsync(*metricsPort)

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()

	if *reset {
		if err := vs.DeleteCollection(ctx); err != nil {
			log.Error("collection reset failed", "error", err)
			os.Exit(1)
		}
		log.Info("collection dropped", "collection", *collection)
	}

	// Qdrant may still be starting; retry collection setup with backoff.
	ensure := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if _, err := ensure.Unwrap(); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

	fetcher := extract.NewFetcher(extract.DefaultFetcherOpts)
	registry := extract.NewRegistry(fetcher)
	embedder := ollama.NewEmbedClient(*ollamaURL, *embedModel)
	log.Info("using Ollama embeddings", "model", *embedModel)

	opts := ingest.Options{
		ChunkSize:    *chunkSize,
		MinChunkSize: *minChunk,
		EmbedWorkers: *workers,
		OnDocument: func(ref domain.DocumentRef, added int, err error) {
			if err != nil {
				mErrorsTotal("document").Inc()
				return
			}
			mDocsTotal(refSource(ref)).Inc()
		},
	}
	svc := ingest.NewService(registry, embedder, vs, opts, log)

	if *natsURL != "" {
		runConsumer(ctx, *natsURL, svc, log)
		return
	}

	refs, err := gatherRefs(ctx, *manifest, *dataDir)
	if err != nil {
		log.Error("gathering refs failed", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	total, err := svc.BuildDatabase(ctx, refs)
	mBuildDur.Since(start)
	mChunksAdded.Add(int64(total))
	if err != nil {
		mErrorsTotal("build").Inc()
		log.Error("database build failed", "chunks_added", total, "error", err)
		os.Exit(1)
	}

	// Exercise descriptions are short synthesized texts; a separate service
	// with no minimum size keeps them from being filtered out.
	if *exercises {
		exOpts := opts
		exOpts.MinChunkSize = 1
		exSvc := ingest.NewService(registry, embedder, vs, exOpts, log)

		exRefs, err := extract.ListExercises(ctx, fetcher, "")
		if err != nil {
			mErrorsTotal("exercises").Inc()
			log.Error("listing exercises failed", "error", err)
			os.Exit(1)
		}
		added, err := exSvc.BuildDatabase(ctx, exRefs)
		mChunksAdded.Add(int64(added))
		total += added
		if err != nil {
			mErrorsTotal("exercises").Inc()
			log.Error("exercise ingestion failed", "error", err)
			os.Exit(1)
		}
		log.Info("exercises ingested", "count", len(exRefs))
	}

	count, err := vs.Count(ctx)
	if err != nil {
		log.Warn("count failed", "error", err)
	}
	log.Info("ingestion complete", "chunks_added", total, "stored_total", count)
}

// runConsumer blocks on the NATS ingestion queue until interrupted.
func runConsumer(ctx context.Context, url string, svc *ingest.Service, log *slog.Logger) {
	nc, err := natsutil.Connect(url, "p4kb-ingest")
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, svc, log)
	if err != nil {
		log.Error("consumer start failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("consuming ingestion queue", "subject", ingest.IngestSubject)
	<-ctx.Done()
	log.Info("shutting down")
}

// gatherRefs combines manifest entries with a local directory scan.
func gatherRefs(ctx context.Context, manifest, dataDir string) ([]domain.DocumentRef, error) {
	var refs []domain.DocumentRef

	if manifest != "" {
		data, err := os.ReadFile(manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		if err := json.Unmarshal(data, &refs); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	}

	if dataDir != "" {
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			var ft domain.FileType
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".pdf":
				ft = domain.FileTypePDF
			case ".txt", ".md":
				ft = domain.FileTypeText
			default:
				continue
			}
			refs = append(refs, domain.DocumentRef{
				Name:     e.Name(),
				Path:     filepath.Join(dataDir, e.Name()),
				FileType: ft,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func refSource(r domain.DocumentRef) string {
	if r.Remote() {
		return "web"
	}
	return "local"
}
