package vehicle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("listing_not_found")

// Listing is the slice of a marketplace listing that financing cares about.
type Listing struct {
	ID    string          `json:"id"`
	Year  int             `json:"year"`
	Price decimal.Decimal `json:"price"`
}

type Lookup interface {
	GetListing(ctx context.Context, listingID string) (*Listing, error)
}
