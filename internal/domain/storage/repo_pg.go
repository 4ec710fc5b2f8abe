package storage

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

const locCols = `id, freezer, shelf, box, position, is_available, notes, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*StorageLocation, error) {
	var loc StorageLocation
	err := row.Scan(&loc.ID, &loc.Freezer, &loc.Shelf, &loc.Box, &loc.Position,
		&loc.IsAvailable, &loc.Notes, &loc.CreatedAt, &loc.UpdatedAt)
	return &loc, err
}

func (r *repoPG) Create(ctx context.Context, loc *StorageLocation) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO storage_locations (freezer, shelf, box, position, is_available, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		loc.Freezer, loc.Shelf, loc.Box, loc.Position, loc.IsAvailable, loc.Notes).
		Scan(&loc.ID, &loc.CreatedAt, &loc.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*StorageLocation, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+locCols+` FROM storage_locations WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, loc *StorageLocation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE storage_locations SET freezer=$2, shelf=$3, box=$4, position=$5,
			is_available=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		loc.ID, loc.Freezer, loc.Shelf, loc.Box, loc.Position, loc.IsAvailable, loc.Notes)
	return err
}

func (r *repoPG) List(ctx context.Context, availableOnly bool, limit, offset int) ([]*StorageLocation, int, error) {
	where := ``
	if availableOnly {
		where = ` WHERE is_available`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM storage_locations`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+locCols+` FROM storage_locations`+where+
		` ORDER BY freezer, shelf, box, position LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*StorageLocation
	for rows.Next() {
		loc, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, loc)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindSlot(ctx context.Context, freezer, shelf, box string, position *string) (*StorageLocation, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+locCols+` FROM storage_locations
		WHERE freezer = $1 AND shelf = $2 AND box = $3 AND position IS NOT DISTINCT FROM $4`,
		freezer, shelf, box, position))
}
