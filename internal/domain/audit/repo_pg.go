package audit

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const delCols = `id, entity_type, entity_id, entity_identifier, deletion_reason,
	previous_status, deleted_by, deleted_by_id, deleted_at`

func (r *repoPG) Append(ctx context.Context, entry *DeletionLog) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO deletion_logs (entity_type, entity_id, entity_identifier,
			deletion_reason, previous_status, deleted_by, deleted_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, deleted_at`,
		entry.EntityType, entry.EntityID, entry.EntityIdentifier,
		entry.DeletionReason, entry.PreviousStatus, entry.DeletedBy, entry.DeletedByID).
		Scan(&entry.ID, &entry.DeletedAt)
}

func (r *repoPG) List(ctx context.Context, entityType string, limit, offset int) ([]*DeletionLog, int, error) {
	where := ``
	args := []interface{}{}
	if entityType != "" {
		where = ` WHERE entity_type = $1`
		args = append(args, entityType)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM deletion_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := `SELECT ` + delCols + ` FROM deletion_logs` + where +
		` ORDER BY deleted_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*DeletionLog
	for rows.Next() {
		var d DeletionLog
		if err := rows.Scan(&d.ID, &d.EntityType, &d.EntityID, &d.EntityIdentifier,
			&d.DeletionReason, &d.PreviousStatus, &d.DeletedBy, &d.DeletedByID,
			&d.DeletedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &d)
	}
	return items, total, rows.Err()
}
