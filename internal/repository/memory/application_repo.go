// Package memory holds process-local implementations of the repository
// interfaces, safe for concurrent use.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carmarket/backend/internal/domain/application"
)

type ApplicationRepo struct {
	mu   sync.RWMutex
	apps map[string]application.Entity
}

func NewApplicationRepo() *ApplicationRepo {
	return &ApplicationRepo{apps: make(map[string]application.Entity)}
}

func (r *ApplicationRepo) Create(_ context.Context, app *application.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = clone(*app)
	return nil
}

func (r *ApplicationRepo) GetByID(_ context.Context, id string) (*application.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	out := clone(app)
	return &out, nil
}

func (r *ApplicationRepo) List(_ context.Context, f application.ListFilter) ([]application.Entity, error) {
	r.mu.RLock()
	matched := make([]application.Entity, 0, len(r.apps))
	for _, app := range r.apps {
		if f.ApplicantID != "" && app.ApplicantID != f.ApplicantID {
			continue
		}
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		if f.VehicleListingID != "" && app.VehicleListingID != f.VehicleListingID {
			continue
		}
		if len(f.TaxIDHash) > 0 && !bytes.Equal(app.TaxIDHash, f.TaxIDHash) {
			continue
		}
		matched = append(matched, clone(app))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start := int(f.Offset)
	if start > len(matched) {
		return []application.Entity{}, nil
	}
	end := len(matched)
	if f.Limit > 0 && start+int(f.Limit) < end {
		end = start + int(f.Limit)
	}
	return matched[start:end], nil
}

// UpdateStatus writes only when the stored status still equals expected.
func (r *ApplicationRepo) UpdateStatus(_ context.Context, id string, expected, next application.Status, review *application.ReviewInfo, updatedAt time.Time) (*application.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	if app.Status != expected {
		return nil, application.ErrStatusConflict
	}
	app.Status = next
	if review != nil {
		app.ReviewInfo = cloneReview(review)
	}
	app.UpdatedAt = updatedAt
	r.apps[id] = app
	out := clone(app)
	return &out, nil
}

func (r *ApplicationRepo) AppendDocument(_ context.Context, id string, doc application.Document, updatedAt time.Time) (*application.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, application.ErrNotFound
	}
	if app.Status == application.StatusRejected || app.Status == application.StatusCancelled {
		return nil, application.ErrStatusConflict
	}
	docs := make([]application.Document, 0, len(app.Documents)+1)
	docs = append(docs, app.Documents...)
	app.Documents = append(docs, doc)
	app.UpdatedAt = updatedAt
	r.apps[id] = app
	out := clone(app)
	return &out, nil
}

func clone(app application.Entity) application.Entity {
	app.Documents = append([]application.Document(nil), app.Documents...)
	if app.Documents == nil {
		app.Documents = []application.Document{}
	}
	app.TaxIDHash = append([]byte(nil), app.TaxIDHash...)
	app.ReviewInfo = cloneReview(app.ReviewInfo)
	return app
}

func cloneReview(in *application.ReviewInfo) *application.ReviewInfo {
	if in == nil {
		return nil
	}
	out := *in
	if in.Approval != nil {
		a := *in.Approval
		out.Approval = &a
	}
	if in.Rejection != nil {
		rj := *in.Rejection
		out.Rejection = &rj
	}
	return &out
}
