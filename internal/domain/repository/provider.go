package repository

import "context"

// SearchRequest is one page request against the search provider.
type SearchRequest struct {
	Keyword string
	Offset  int
	Count   int
}

// SearchPage is one page of raw provider results.
type SearchPage struct {
	// Entries are untyped records as decoded from the provider payload.
	Entries []any
	HasMore bool
	// Cursor is the provider's next offset, nil when absent.
	Cursor *int
}

// SearchProvider opens search sessions against the upstream video search endpoint.
// Implementations should be provided by the infrastructure layer.
type SearchProvider interface {
	// Open acquires a session. The caller must Close it when the fetch ends.
	Open(ctx context.Context) (SearchSession, error)
}

// SearchSession issues page requests. A session serves one fetch operation
// and is not shared between concurrent fetches.
type SearchSession interface {
	// Search requests one page. A transport failure or a payload of unexpected
	// shape is returned as an error.
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)

	// Close releases the session resources.
	Close() error
}
