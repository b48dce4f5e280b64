package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carmarket/backend/internal/domain/application"
	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/carmarket/backend/internal/domain/vehicle"
)

type PartnerRepo struct {
	mu    sync.RWMutex
	items []partner.Entity
}

func NewPartnerRepo(items ...partner.Entity) *PartnerRepo {
	return &PartnerRepo{items: append([]partner.Entity(nil), items...)}
}

func (r *PartnerRepo) ListActive(_ context.Context) ([]partner.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]partner.Entity, 0, len(r.items))
	for _, p := range r.items {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PartnerRepo) GetByID(_ context.Context, id string) (*partner.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.items {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, partner.ErrNotFound
}

type VehicleRepo struct {
	mu       sync.RWMutex
	listings map[string]vehicle.Listing
}

func NewVehicleRepo(listings ...vehicle.Listing) *VehicleRepo {
	r := &VehicleRepo{listings: make(map[string]vehicle.Listing, len(listings))}
	for _, l := range listings {
		r.listings[l.ID] = l
	}
	return r
}

func (r *VehicleRepo) GetListing(_ context.Context, listingID string) (*vehicle.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[listingID]
	if !ok {
		return nil, vehicle.ErrNotFound
	}
	return &l, nil
}

type AuditRepo struct {
	mu      sync.Mutex
	entries []application.AuditEntry
	now     func() time.Time
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{now: func() time.Time { return time.Now().UTC() }}
}

func (r *AuditRepo) Log(_ context.Context, in application.AuditLogInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, application.AuditEntry{
		ActorID:    in.ActorID,
		Action:     in.Action,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Payload:    append([]byte(nil), in.Payload...),
		CreatedAt:  r.now(),
	})
	return nil
}

// ListByTarget returns the trail for one record, oldest first.
func (r *AuditRepo) ListByTarget(_ context.Context, targetType, targetID string) ([]application.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application.AuditEntry, 0)
	for _, e := range r.entries {
		if e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}
