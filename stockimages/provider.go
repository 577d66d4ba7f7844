// Package stockimages provides clients for stock photo providers behind a
// common Provider interface. Clients constructed without a credential are
// valid: they return zero results so callers fall through to the next
// provider in their chain.
package stockimages

import (
	"context"

	"github.com/zombar/optimizer/models"
)

// Provider is one stock image source.
type Provider interface {
	// Name identifies the provider in events and logs.
	Name() string
	// Search returns up to count candidates for a query. A provider with
	// no credential returns (nil, nil).
	Search(ctx context.Context, query string, count int) ([]models.ImageResult, error)
}
