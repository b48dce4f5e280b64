package postgres

import (
	"context"
	"errors"

	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const partnerColumns = `id, name, annual_rate, min_term, max_term, active, max_vehicle_age_years, min_vehicle_year, created_at, updated_at`

// PartnerRepository reads the lending partner table. Partners are
// administered outside this service, so there is no write path.
type PartnerRepository struct {
	pool *pgxpool.Pool
}

func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

func (r *PartnerRepository) ListActive(ctx context.Context) ([]partner.Entity, error) {
	q := `SELECT ` + partnerColumns + ` FROM lending_partners WHERE active ORDER BY annual_rate ASC, id ASC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]partner.Entity, 0)
	for rows.Next() {
		item, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*partner.Entity, error) {
	q := `SELECT ` + partnerColumns + ` FROM lending_partners WHERE id = $1`
	out, err := scanPartner(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, partner.ErrNotFound
	}
	return out, err
}

func scanPartner(row pgx.Row) (*partner.Entity, error) {
	out := &partner.Entity{}
	err := row.Scan(
		&out.ID, &out.Name, &out.AnnualRate, &out.MinTerm, &out.MaxTerm, &out.Active,
		&out.MaxVehicleAgeYears, &out.MinVehicleYear, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}
