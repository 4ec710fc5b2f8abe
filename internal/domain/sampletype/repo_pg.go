package sampletype

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

const stCols = `id, name, display_name, description, requires_description,
	is_active, sort_order, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*SampleType, error) {
	var st SampleType
	err := row.Scan(&st.ID, &st.Name, &st.DisplayName, &st.Description,
		&st.RequiresDescription, &st.IsActive, &st.SortOrder,
		&st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *repoPG) Create(ctx context.Context, st *SampleType) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sample_types (name, display_name, description, requires_description, is_active, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		st.Name, st.DisplayName, st.Description, st.RequiresDescription,
		st.IsActive, st.SortOrder).
		Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*SampleType, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+stCols+` FROM sample_types WHERE id = $1`, id))
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*SampleType, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+stCols+` FROM sample_types WHERE name = $1`, name))
}

func (r *repoPG) Update(ctx context.Context, st *SampleType) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE sample_types SET display_name=$2, description=$3, requires_description=$4,
			is_active=$5, sort_order=$6, updated_at=NOW()
		WHERE id = $1`,
		st.ID, st.DisplayName, st.Description, st.RequiresDescription,
		st.IsActive, st.SortOrder)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool) ([]*SampleType, error) {
	q := `SELECT ` + stCols + ` FROM sample_types`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY sort_order, display_name`

	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*SampleType
	for rows.Next() {
		st, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	return items, rows.Err()
}
