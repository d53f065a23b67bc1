package domain

import (
	"fmt"
	"strings"
)

// ValidateRef checks that a document reference is usable by the ingestion
// workflow: a non-empty name, exactly one source location, and a sane name
// (chunk IDs embed it, so it must not contain whitespace).
func ValidateRef(ref DocumentRef) error {
	if strings.TrimSpace(ref.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRef)
	}
	if strings.ContainsAny(ref.Name, " \t\n") {
		return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidRef, ref.Name)
	}
	if ref.Path == "" && ref.URL == "" {
		return fmt.Errorf("%w: %s has neither path nor url", ErrInvalidRef, ref.Name)
	}
	if ref.Path != "" && ref.URL != "" {
		return fmt.Errorf("%w: %s has both path and url", ErrInvalidRef, ref.Name)
	}
	switch ref.FileType {
	case "", FileTypePDF, FileTypeText, FileTypeDirectory:
	default:
		return fmt.Errorf("%w: %s has unknown file type %q", ErrInvalidRef, ref.Name, ref.FileType)
	}
	return nil
}
