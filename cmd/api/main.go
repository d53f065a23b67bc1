// Command api serves the retrieval HTTP API: POST /api/query embeds a
// question, searches Qdrant for the nearest chunks, and optionally
// generates an answer with the chat model.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/engine/rag"
	"github.com/p4kb/p4kb/engine/semantic"
	"github.com/p4kb/p4kb/pkg/metrics"
	"github.com/p4kb/p4kb/pkg/mid"
	"github.com/p4kb/p4kb/pkg/ollama"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "p4kb")
	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	chatModel := envOr("CHAT_MODEL", "llama3.1:8b")
	port := envOr("PORT", "8090")

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	embedClient := ollama.NewEmbedClient(ollamaURL, embedModel)
	chatClient := ollama.NewChatClient(ollamaURL, chatModel)
	svc := rag.New(embedClient, store, chatClient, rag.DefaultOptions(), logger)

	met := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(w, r, svc, logger)
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("p4kb-api"),
		mid.Logger(logger),
		mid.Metrics(met),
		mid.CORS("*"),
	)

	srv := &http.Server{Addr: ":" + port, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("query API starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	FileType string `json:"file_type"`
	Answer   bool   `json:"answer"`
}

type hitDoc struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Filename string  `json:"filename"`
	Score    float32 `json:"score"`
}

type queryResponse struct {
	Hits    []hitDoc `json:"hits"`
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

func handleQuery(w http.ResponseWriter, r *http.Request, svc *rag.Service, logger *slog.Logger) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		http.Error(w, `{"error":"question required"}`, http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	hits, err := svc.RetrieveHits(ctx, req.Question, req.TopK, req.FileType)
	if err != nil {
		logger.Error("retrieve failed", "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrStoreQuery) {
			status = http.StatusBadGateway
		}
		http.Error(w, `{"error":"retrieval failed"}`, status)
		return
	}

	resp := queryResponse{Hits: make([]hitDoc, len(hits))}
	for i, h := range hits {
		resp.Hits[i] = hitDoc{
			ID:       h.ID,
			Text:     h.Text,
			Filename: h.Meta[domain.MetaFilename],
			Score:    h.Score,
		}
	}

	if req.Answer {
		answer, sources, err := svc.Answer(ctx, req.Question)
		if err != nil {
			logger.Error("answer failed", "err", err)
			http.Error(w, `{"error":"generation failed"}`, http.StatusBadGateway)
			return
		}
		resp.Answer = answer
		resp.Sources = sources
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
