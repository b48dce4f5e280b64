package postgres

import (
	"context"
	"errors"

	"github.com/carmarket/backend/internal/domain/vehicle"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VehicleRepository struct {
	pool *pgxpool.Pool
}

func NewVehicleRepository(pool *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{pool: pool}
}

func (r *VehicleRepository) GetListing(ctx context.Context, listingID string) (*vehicle.Listing, error) {
	q := `SELECT id, year, price FROM vehicle_listings WHERE id = $1`
	out := &vehicle.Listing{}
	err := r.pool.QueryRow(ctx, q, listingID).Scan(&out.ID, &out.Year, &out.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, vehicle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
