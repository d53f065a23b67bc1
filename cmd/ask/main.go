// Command ask answers a single P4 question from the command line and
// saves the generated code to a .p4 file named after the question.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/p4kb/p4kb/engine/rag"
	"github.com/p4kb/p4kb/engine/semantic"
	"github.com/p4kb/p4kb/pkg/ollama"
)

func main() {
	var (
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "p4kb", "Qdrant collection name")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel = flag.String("embed-model", "nomic-embed-text", "Ollama embedding model")
		chatModel  = flag.String("chat-model", "llama3.1:8b", "Ollama chat model")
		outDir     = flag.String("out", ".", "directory for the generated .p4 file")
		topK       = flag.Int("k", 3, "number of context chunks to retrieve")
		noSave     = flag.Bool("no-save", false, "print only, skip writing the .p4 file")
	)
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [flags] <question>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	embedClient := ollama.NewEmbedClient(*ollamaURL, *embedModel)
	chatClient := ollama.NewChatClient(*ollamaURL, *chatModel)

	opts := rag.DefaultOptions()
	opts.TopK = *topK
	svc := rag.New(embedClient, store, chatClient, opts, log)

	answer, sources, err := svc.Answer(ctx, question)
	if err != nil {
		log.Error("answer failed", "error", err)
		os.Exit(1)
	}

	if len(sources) > 0 {
		fmt.Fprintln(os.Stderr, "context from:", strings.Join(sources, ", "))
	}
	fmt.Println(answer)

	if !*noSave {
		path, err := rag.WriteAnswer(*outDir, question, answer)
		if err != nil {
			log.Error("saving answer failed", "error", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "saved to", path)
	}
}
