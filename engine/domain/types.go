// Package domain holds the core types shared by the ingestion and
// retrieval workflows, plus validation for incoming document references.
package domain

import "fmt"

// FileType tags the kind of source a document reference points at.
type FileType string

const (
	FileTypePDF       FileType = "pdf"
	FileTypeText      FileType = "text"
	FileTypeDirectory FileType = "directory"
)

// DocumentRef identifies a source document to ingest. Exactly one of Path
// or URL is set; remote refs are fetched, local refs are read from disk.
// The ref itself is never stored, only the chunks derived from it.
type DocumentRef struct {
	Name     string   `json:"name"`
	Path     string   `json:"path,omitempty"`
	URL      string   `json:"url,omitempty"`
	FileType FileType `json:"file_type,omitempty"`
}

// Remote reports whether the ref is fetched over the network.
func (r DocumentRef) Remote() bool { return r.URL != "" }

// Chunk is a bounded fragment of a document's extracted text. Its ID is
// derived from the document name and the fragment's position, so re-running
// ingestion over unchanged content reproduces identical IDs.
type Chunk struct {
	ID    string
	Text  string
	Index int
	Meta  map[string]string
}

// ChunkID builds the stable identifier for the index-th chunk of a document.
func ChunkID(docName string, index int) string {
	return fmt.Sprintf("%s-%d", docName, index)
}

// Record is the persisted tuple owned by the store. Embeddings are computed
// once at insertion; a changed text is a new chunk with a new ID.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Meta      map[string]string
}

// Hit is a single nearest-neighbor match, nearest first in any result slice.
type Hit struct {
	ID    string
	Text  string
	Score float32
	Meta  map[string]string
}

// Metadata keys used in store payloads.
const (
	MetaFilename   = "filename"
	MetaFilePath   = "file_path"
	MetaSourceURL  = "source_url"
	MetaFileType   = "file_type"
	MetaChunkID    = "chunk_id"
	MetaChunkIndex = "chunk_index"
)
