// Package lookup is the boundary to the external address lookup service.
//
// The capture workflow depends only on Searcher. Client talks to the HTTP
// lookup API; package cache decorates any Searcher with a TTL cache.
package lookup

import (
	"context"

	"addressbook/internal/address/models"
)

//go:generate mockgen -source=lookup.go -destination=mocks/mocks.go -package=mocks Searcher

// Searcher finds candidate addresses for a postcode and house number.
// Implementations may block; callers pass a context to bound the wait.
// Failures should be *LookupError so the message can be shown to users.
type Searcher interface {
	Search(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error)

func (f SearcherFunc) Search(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error) {
	return f(ctx, postCode, houseNumber)
}
