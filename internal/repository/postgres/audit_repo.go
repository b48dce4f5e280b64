package postgres

import (
	"context"

	"github.com/carmarket/backend/internal/domain/application"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, in application.AuditLogInput) error {
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	q := `
INSERT INTO review_audit_logs (actor_id, action, target_type, target_id, payload)
VALUES ($1, $2, $3, $4, $5::jsonb)
`
	_, err := r.pool.Exec(ctx, q, in.ActorID, in.Action, in.TargetType, in.TargetID, payload)
	return err
}

// ListByTarget returns the trail for one record, oldest first.
func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]application.AuditEntry, error) {
	q := `
SELECT actor_id, action, target_type, target_id, payload, created_at
FROM review_audit_logs
WHERE target_type = $1 AND target_id = $2
ORDER BY created_at ASC, id ASC
`
	rows, err := r.pool.Query(ctx, q, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]application.AuditEntry, 0)
	for rows.Next() {
		var item application.AuditEntry
		if err := rows.Scan(&item.ActorID, &item.Action, &item.TargetType, &item.TargetID, &item.Payload, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
