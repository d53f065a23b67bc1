// Package extract turns document references into raw UTF-8 text. Local
// refs are read from disk, remote refs are fetched with a bounded timeout,
// and the bytes are handed to a per-file-type converter. The registry
// satisfies the ingestion workflow's Extractor contract.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/p4kb/p4kb/engine/domain"
)

// Converter decodes one file type's bytes into plain text.
type Converter interface {
	Convert(data []byte) (string, error)
	FileType() domain.FileType
}

// Registry routes refs to converters by file type.
type Registry struct {
	fetch      *Fetcher
	converters map[domain.FileType]Converter
}

// NewRegistry creates a registry with the PDF and plain-text converters
// installed.
func NewRegistry(fetch *Fetcher) *Registry {
	r := &Registry{
		fetch:      fetch,
		converters: make(map[domain.FileType]Converter),
	}
	r.Register(PDFConverter{})
	r.Register(TextConverter{})
	return r
}

// Register installs a converter, replacing any previous one for its type.
func (r *Registry) Register(c Converter) {
	r.converters[c.FileType()] = c
}

// Extract produces the text of the referenced document. All failures wrap
// domain.ErrExtraction so batch ingestion can skip the document and move on.
func (r *Registry) Extract(ctx context.Context, ref domain.DocumentRef) (string, error) {
	ft := fileTypeOf(ref)

	// Exercise listing entries have no fetchable body; their text is the
	// description synthesized from the ref itself.
	if ft == domain.FileTypeDirectory {
		return fmt.Sprintf("Exercise: %s located at %s", ref.Name, ref.URL), nil
	}

	conv, ok := r.converters[ft]
	if !ok {
		return "", fmt.Errorf("%w: %s: no converter for type %q", domain.ErrExtraction, ref.Name, ft)
	}

	data, err := r.load(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtraction, ref.Name, err)
	}

	text, err := conv.Convert(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtraction, ref.Name, err)
	}
	return text, nil
}

func (r *Registry) load(ctx context.Context, ref domain.DocumentRef) ([]byte, error) {
	if ref.Remote() {
		if r.fetch == nil {
			return nil, fmt.Errorf("no fetcher configured for remote ref")
		}
		return r.fetch.Get(ctx, ref.URL)
	}
	return os.ReadFile(ref.Path)
}

// fileTypeOf returns the ref's declared type, falling back to the source
// extension.
func fileTypeOf(ref domain.DocumentRef) domain.FileType {
	if ref.FileType != "" {
		return ref.FileType
	}
	source := ref.Path
	if source == "" {
		source = ref.URL
	}
	if strings.EqualFold(filepath.Ext(source), ".pdf") {
		return domain.FileTypePDF
	}
	return domain.FileTypeText
}

// TextConverter passes bytes through as UTF-8 text.
type TextConverter struct{}

func (TextConverter) Convert(data []byte) (string, error) { return string(data), nil }

func (TextConverter) FileType() domain.FileType { return domain.FileTypeText }
