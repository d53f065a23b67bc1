package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/p4kb/p4kb/engine/domain"
)

// DefaultExercisesAPI is the GitHub contents endpoint listing the p4lang
// tutorial exercises.
const DefaultExercisesAPI = "https://api.github.com/repos/p4lang/tutorials/contents/exercises"

type githubEntry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	HTMLURL string `json:"html_url"`
}

// ListExercises fetches the exercise listing and returns one document ref
// per exercise directory, typed FileTypeDirectory. Files in the listing
// are ignored.
func ListExercises(ctx context.Context, f *Fetcher, apiURL string) ([]domain.DocumentRef, error) {
	if apiURL == "" {
		apiURL = DefaultExercisesAPI
	}

	data, err := f.Get(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: list exercises: %w", domain.ErrExtraction, err)
	}

	var entries []githubEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode exercise listing: %w", domain.ErrExtraction, err)
	}

	var refs []domain.DocumentRef
	for _, e := range entries {
		if e.Type != "dir" {
			continue
		}
		refs = append(refs, domain.DocumentRef{
			Name:     e.Name,
			URL:      e.HTMLURL,
			FileType: domain.FileTypeDirectory,
		})
	}
	return refs, nil
}
