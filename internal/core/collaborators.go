package core

import (
	"context"

	"nephro-assistant/pkg"
)

// PatientLookup finds discharge records by patient name.  An empty result is
// not an error; a missing backing store is.
type PatientLookup interface {
	FindByName(ctx context.Context, name string) ([]pkg.PatientRecord, error)
}

// DocumentSearcher runs a top-k similarity search over the reference index.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, k int) ([]pkg.Passage, error)
}

// WebSearcher runs a live web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, n int) ([]pkg.WebResult, error)
}
