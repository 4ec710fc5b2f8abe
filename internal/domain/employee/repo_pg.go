package employee

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

const empCols = `id, name, email, title, department, is_active, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Title, &e.Department,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Employee) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO employees (name, email, title, department, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		e.Name, e.Email, e.Title, e.Department, e.IsActive).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Employee, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+empCols+` FROM employees WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Employee, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+empCols+` FROM employees WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, e *Employee) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE employees SET name=$2, email=$3, title=$4, department=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Name, e.Email, e.Title, e.Department, e.IsActive)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool) ([]*Employee, error) {
	q := `SELECT ` + empCols + ` FROM employees`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Employee
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
