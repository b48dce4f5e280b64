package partner

import (
	"context"
	"sort"
	"time"
)

// Catalog answers which lending partners can finance a vehicle and on what
// terms. It holds no state of its own; every call reads through to the Source.
type Catalog struct {
	source Source
	now    func() time.Time
}

func NewCatalog(source Source) *Catalog {
	return &Catalog{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FindEligible returns active partners, best rate first. A nil vehicleYear
// skips the year predicate, which is what the generic simulator wants.
func (c *Catalog) FindEligible(ctx context.Context, vehicleYear *int) ([]Entity, error) {
	items, err := c.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	currentYear := c.now().Year()
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		if !item.Active {
			continue
		}
		if vehicleYear != nil && !item.AcceptsVehicleYear(*vehicleYear, currentYear) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].AnnualRate.Cmp(out[j].AnnualRate); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns the partner regardless of its active flag.
func (c *Catalog) Get(ctx context.Context, partnerID string) (*Entity, error) {
	return c.source.GetByID(ctx, partnerID)
}

// TermIsValid reports whether termMonths sits inside the partner's envelope.
// Unknown partners surface as ErrNotFound.
func (c *Catalog) TermIsValid(ctx context.Context, partnerID string, termMonths int) (bool, error) {
	p, err := c.source.GetByID(ctx, partnerID)
	if err != nil {
		return false, err
	}
	return p.AcceptsTerm(termMonths), nil
}
