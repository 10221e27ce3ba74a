package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository over audit_logs.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Trail(ctx context.Context, businessID int64, filters Filters) ([]Entry, int, error) {
	where := `WHERE business_id=$1`
	args := []any{businessID}
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(" AND "+clause, len(args))
	}
	if filters.Entity != "" {
		add("entity=$%d", filters.Entity)
	}
	if filters.EntityID != 0 {
		add("entity_id=$%d", filters.EntityID)
	}
	if filters.ActorID != 0 {
		add("actor_id=$%d", filters.ActorID)
	}
	if filters.Action != "" {
		add("action=$%d", filters.Action)
	}
	if filters.From != nil {
		add("occurred_at >= $%d", *filters.From)
	}
	if filters.To != nil {
		add("occurred_at <= $%d", *filters.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	query := fmt.Sprintf(`SELECT id, business_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &meta, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
