// Package provider defines the contract every metadata source implements and
// the registry the fetch orchestrator resolves providers from.
package provider

import "context"

// Adapter fetches book metadata from one external source.
//
// An empty result is never an error: adapters return an empty slice or a nil
// pointer when the source has nothing. Errors are reserved for transport and
// decoding failures.
type Adapter interface {
	// ID returns the provider identifier.
	ID() ID

	// SearchPreviews returns lightweight candidates for q, best match first.
	SearchPreviews(ctx context.Context, q Query) ([]Metadata, error)

	// FetchDetails expands previews into full metadata. Previews that fail
	// to expand are dropped, not reported.
	FetchDetails(ctx context.Context, previews []Metadata) ([]Metadata, error)

	// FetchTop returns the fully detailed best match, or nil.
	FetchTop(ctx context.Context, q Query) (*Metadata, error)
}

// Searcher is the subset of Adapter that TopFrom needs.
type Searcher interface {
	SearchPreviews(ctx context.Context, q Query) ([]Metadata, error)
	FetchDetails(ctx context.Context, previews []Metadata) ([]Metadata, error)
}

// TopFrom implements FetchTop in terms of SearchPreviews and FetchDetails:
// only the first preview is expanded.
func TopFrom(ctx context.Context, s Searcher, q Query) (*Metadata, error) {
	previews, err := s.SearchPreviews(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(previews) == 0 {
		return nil, nil
	}
	detailed, err := s.FetchDetails(ctx, previews[:1])
	if err != nil {
		return nil, err
	}
	if len(detailed) == 0 {
		return nil, nil
	}
	top := detailed[0]
	return &top, nil
}
