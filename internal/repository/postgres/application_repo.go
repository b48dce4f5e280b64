package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carmarket/backend/internal/domain/application"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `id, applicant_id, COALESCE(vehicle_listing_id, ''), personal_info, employment_info,
       financial_info, emergency_contact, documents, status, review_info, tax_id_hash,
       created_at, submitted_at, updated_at`

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *application.Entity) error {
	rec, err := encodeApplication(app)
	if err != nil {
		return err
	}
	q := `
INSERT INTO credit_applications (
  id, applicant_id, vehicle_listing_id, personal_info, employment_info, financial_info,
  emergency_contact, documents, status, review_info, tax_id_hash, created_at, submitted_at, updated_at
) VALUES ($1, $2, NULLIF($3, ''), $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10::jsonb, $11, $12, $13, $14)
`
	_, err = r.pool.Exec(ctx, q,
		app.ID, app.ApplicantID, app.VehicleListingID, rec.personal, rec.employment, rec.financial,
		rec.emergency, rec.documents, app.Status, rec.review, app.TaxIDHash, app.CreatedAt, app.SubmittedAt, app.UpdatedAt,
	)
	return err
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*application.Entity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, application.ErrNotFound
	}
	q := `SELECT ` + applicationColumns + ` FROM credit_applications WHERE id = $1`
	out, err := scanApplication(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, application.ErrNotFound
	}
	return out, err
}

func (r *ApplicationRepository) List(ctx context.Context, f application.ListFilter) ([]application.Entity, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + applicationColumns + `
FROM credit_applications
WHERE 1=1`)

	args := []any{}
	argPos := 1
	addFilter := func(column string, value any) {
		builder.WriteString(" AND " + column + " = $")
		builder.WriteString(strconv.Itoa(argPos))
		args = append(args, value)
		argPos++
	}
	if strings.TrimSpace(f.ApplicantID) != "" {
		addFilter("applicant_id", f.ApplicantID)
	}
	if f.Status != "" {
		addFilter("status", string(f.Status))
	}
	if strings.TrimSpace(f.VehicleListingID) != "" {
		addFilter("vehicle_listing_id", f.VehicleListingID)
	}
	if len(f.TaxIDHash) > 0 {
		addFilter("tax_id_hash", f.TaxIDHash)
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")
	builder.WriteString(" LIMIT $")
	builder.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Limit)
	argPos++
	builder.WriteString(" OFFSET $")
	builder.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Offset)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]application.Entity, 0)
	for rows.Next() {
		item, err := scanApplication(rows)
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

// UpdateStatus is a compare-and-set on status. When no row matches it tells a
// missing application apart from one another writer already moved.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, expected, next application.Status, review *application.ReviewInfo, updatedAt time.Time) (*application.Entity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, application.ErrNotFound
	}
	var reviewJSON []byte
	if review != nil {
		raw, err := json.Marshal(review)
		if err != nil {
			return nil, fmt.Errorf("encode review info: %w", err)
		}
		reviewJSON = raw
	}

	q := `
UPDATE credit_applications
SET status = $3,
    review_info = COALESCE($4::jsonb, review_info),
    updated_at = $5
WHERE id = $1 AND status = $2
RETURNING ` + applicationColumns
	out, err := scanApplication(r.pool.QueryRow(ctx, q, id, string(expected), string(next), reviewJSON, updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrConflict(ctx, id)
	}
	return out, err
}

// AppendDocument refuses rejected and cancelled applications in the same
// statement, returning ErrStatusConflict when one of them is hit.
func (r *ApplicationRepository) AppendDocument(ctx context.Context, id string, doc application.Document, updatedAt time.Time) (*application.Entity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, application.ErrNotFound
	}
	raw, err := json.Marshal([]application.Document{doc})
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	q := `
UPDATE credit_applications
SET documents = documents || $2::jsonb,
    updated_at = $3
WHERE id = $1 AND status NOT IN ('rejected', 'cancelled')
RETURNING ` + applicationColumns
	out, err := scanApplication(r.pool.QueryRow(ctx, q, id, raw, updatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrConflict(ctx, id)
	}
	return out, err
}

func (r *ApplicationRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credit_applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return application.ErrNotFound
	}
	return application.ErrStatusConflict
}

type applicationRecord struct {
	personal, employment, financial, emergency, documents, review []byte
}

func encodeApplication(app *application.Entity) (*applicationRecord, error) {
	var (
		rec applicationRecord
		err error
	)
	if rec.personal, err = json.Marshal(app.PersonalInfo); err != nil {
		return nil, fmt.Errorf("encode personal info: %w", err)
	}
	if rec.employment, err = json.Marshal(app.EmploymentInfo); err != nil {
		return nil, fmt.Errorf("encode employment info: %w", err)
	}
	if rec.financial, err = json.Marshal(app.FinancialInfo); err != nil {
		return nil, fmt.Errorf("encode financial info: %w", err)
	}
	if rec.emergency, err = json.Marshal(app.EmergencyContact); err != nil {
		return nil, fmt.Errorf("encode emergency contact: %w", err)
	}
	docs := app.Documents
	if docs == nil {
		docs = []application.Document{}
	}
	if rec.documents, err = json.Marshal(docs); err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	if app.ReviewInfo != nil {
		if rec.review, err = json.Marshal(app.ReviewInfo); err != nil {
			return nil, fmt.Errorf("encode review info: %w", err)
		}
	}
	return &rec, nil
}

func scanApplication(row pgx.Row) (*application.Entity, error) {
	var (
		out    application.Entity
		rec    applicationRecord
		status string
	)
	if err := row.Scan(
		&out.ID, &out.ApplicantID, &out.VehicleListingID, &rec.personal, &rec.employment,
		&rec.financial, &rec.emergency, &rec.documents, &status, &rec.review, &out.TaxIDHash,
		&out.CreatedAt, &out.SubmittedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.Status = application.Status(status)

	sections := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"personal_info", rec.personal, &out.PersonalInfo},
		{"employment_info", rec.employment, &out.EmploymentInfo},
		{"financial_info", rec.financial, &out.FinancialInfo},
		{"emergency_contact", rec.emergency, &out.EmergencyContact},
		{"documents", rec.documents, &out.Documents},
	}
	for _, s := range sections {
		if err := json.Unmarshal(s.raw, s.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.name, err)
		}
	}
	if len(rec.review) > 0 {
		out.ReviewInfo = &application.ReviewInfo{}
		if err := json.Unmarshal(rec.review, out.ReviewInfo); err != nil {
			return nil, fmt.Errorf("decode review_info: %w", err)
		}
	}
	return &out, nil
}
