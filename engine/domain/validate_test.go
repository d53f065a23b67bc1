package domain

import (
	"errors"
	"testing"
)

func validRef() DocumentRef {
	return DocumentRef{
		Name:     "p4-cheat-sheet.pdf",
		Path:     "/data/p4-cheat-sheet.pdf",
		FileType: FileTypePDF,
	}
}

func TestValidateRef_Valid(t *testing.T) {
	if err := ValidateRef(validRef()); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestValidateRef_EmptyName(t *testing.T) {
	ref := validRef()
	ref.Name = "  "
	if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestValidateRef_NameWithWhitespace(t *testing.T) {
	ref := validRef()
	ref.Name = "cheat sheet.pdf"
	if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestValidateRef_NoSource(t *testing.T) {
	ref := validRef()
	ref.Path = ""
	if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestValidateRef_BothSources(t *testing.T) {
	ref := validRef()
	ref.URL = "https://example.com/p4-cheat-sheet.pdf"
	if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestValidateRef_UnknownFileType(t *testing.T) {
	ref := validRef()
	ref.FileType = "spreadsheet"
	if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("p4-cheat-sheet.pdf", 0); got != "p4-cheat-sheet.pdf-0" {
		t.Errorf("unexpected chunk id %q", got)
	}
	if got := ChunkID("basic", 12); got != "basic-12" {
		t.Errorf("unexpected chunk id %q", got)
	}
}

func TestDocumentError_Unwrap(t *testing.T) {
	err := NewDocumentError("basic", "ingest", ErrExtraction)
	if !errors.Is(err, ErrExtraction) {
		t.Fatal("expected errors.Is to see the sentinel through DocumentError")
	}
	if err.Error() == "" {
		t.Fatal("expected a message")
	}
}
