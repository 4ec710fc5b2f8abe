package blocker

import (
	"context"

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

const blkCols = `id, name, units, storage, location, function, notes, created_by_id, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Blocker, error) {
	var b Blocker
	err := row.Scan(&b.ID, &b.Name, &b.Units, &b.Storage, &b.Location,
		&b.Function, &b.Notes, &b.CreatedByID, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Blocker) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO blockers (name, units, storage, location, function, notes, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		b.Name, b.Units, b.Storage, b.Location, b.Function, b.Notes, b.CreatedByID).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Blocker, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+blkCols+` FROM blockers WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, b *Blocker) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE blockers SET name=$2, units=$3, storage=$4, location=$5,
			function=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Name, b.Units, b.Storage, b.Location, b.Function, b.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM blockers WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Blocker, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blockers`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+blkCols+` FROM blockers
		ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Blocker
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AppendLog(ctx context.Context, log *BlockerLog) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO blocker_logs (blocker_id, log_type, old_value, new_value, comment, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		log.BlockerID, log.LogType, log.OldValue, log.NewValue, log.Comment, log.CreatedByID).
		Scan(&log.ID, &log.CreatedAt)
}

func (r *repoPG) GetLogs(ctx context.Context, blockerID int64) ([]*BlockerLog, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, blocker_id, log_type, old_value, new_value, comment, created_by_id, created_at
		FROM blocker_logs WHERE blocker_id = $1 ORDER BY created_at, id`, blockerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BlockerLog
	for rows.Next() {
		var l BlockerLog
		if err := rows.Scan(&l.ID, &l.BlockerID, &l.LogType, &l.OldValue,
			&l.NewValue, &l.Comment, &l.CreatedByID, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}
