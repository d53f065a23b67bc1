package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/p4kb/p4kb/engine/domain"
	"github.com/p4kb/p4kb/pkg/fn"
)

const defaultSystemPrompt = `You are a specialized AI in the P4 programming language. Use Chain of Thought
reasoning to first analyze the problem, break it into steps, and then generate
only valid P4 code using the best available references. Reference the provided
context when applicable; if it is incomplete, infer the missing parts. Return
only valid P4 code with no explanations or comments.`

// fallbackNote is prepended when the store contributed no context.
const fallbackNote = "// Note: Generated based on best knowledge.\n"

// Answer retrieves context for the question and asks the chat model for
// P4 code. It returns the generated text and the filenames of the documents
// that backed it; an empty source list means the model answered from its
// own knowledge and the output carries a note saying so.
func (s *Service) Answer(ctx context.Context, question string) (string, []string, error) {
	if s.chat == nil {
		return "", nil, fmt.Errorf("rag: no chat client configured")
	}

	hits, err := s.RetrieveHits(ctx, question, s.opts.TopK, "")
	if err != nil {
		return "", nil, err
	}
	sources := sourceNames(hits)

	contextBlock := "No relevant documents found."
	if len(hits) > 0 {
		texts := fn.Map(hits, func(h domain.Hit) string { return h.Text })
		contextBlock = strings.Join(texts, "\n")
	}

	prompt := fmt.Sprintf(`--- Context ---
%s
----------------

Question: %s

Decompose the problem step by step, outline the program structure, then
provide only the valid P4 code below:`, contextBlock, question)

	reply, err := s.chat.Chat(ctx, s.opts.SystemPrompt, prompt)
	if err != nil {
		return "", sources, fmt.Errorf("rag: chat: %w", err)
	}

	if len(hits) == 0 {
		reply = fallbackNote + reply
	}
	return reply, sources, nil
}

// sourceNames returns the distinct filenames behind a hit list, in hit
// order. Hits without filename metadata are skipped.
func sourceNames(hits []domain.Hit) []string {
	names := fn.Map(hits, func(h domain.Hit) string { return h.Meta[domain.MetaFilename] })
	names = fn.Filter(names, func(n string) bool { return n != "" })
	return fn.UniqueBy(names, func(n string) string { return n })
}

// maxFilenameLen bounds the sanitized stem length.
const maxFilenameLen = 50

// SanitizeFilename converts a query into a safe .p4 filename: every
// character outside [a-zA-Z0-9_] becomes an underscore and the stem is
// truncated to maxFilenameLen.
func SanitizeFilename(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxFilenameLen {
			break
		}
	}
	return b.String() + ".p4"
}

// WriteAnswer saves generated code under dir using the sanitized query as
// the filename, returning the written path.
func WriteAnswer(dir, query, code string) (string, error) {
	path := filepath.Join(dir, SanitizeFilename(query))
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("rag: write answer: %w", err)
	}
	return path, nil
}
