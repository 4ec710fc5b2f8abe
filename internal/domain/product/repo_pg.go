package product

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

const prodCols = `id, name, quantity, catalog_number, order_date, requestor,
	quotation_status, total_value, status, requisition_id, vendor, chartfield,
	notes, storage, created_by_id, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.CatalogNumber, &p.OrderDate,
		&p.Requestor, &p.QuotationStatus, &p.TotalValue, &p.Status,
		&p.RequisitionID, &p.Vendor, &p.Chartfield, &p.Notes, &p.Storage,
		&p.CreatedByID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Product) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (name, quantity, catalog_number, order_date, requestor,
			quotation_status, total_value, status, requisition_id, vendor, chartfield,
			notes, storage, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Quantity, p.CatalogNumber, p.OrderDate, p.Requestor,
		p.QuotationStatus, p.TotalValue, p.Status, p.RequisitionID, p.Vendor,
		p.Chartfield, p.Notes, p.Storage, p.CreatedByID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Product, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+prodCols+` FROM products WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Product) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE products SET name=$2, quantity=$3, catalog_number=$4, order_date=$5,
			requestor=$6, quotation_status=$7, total_value=$8, status=$9,
			requisition_id=$10, vendor=$11, chartfield=$12, notes=$13, storage=$14,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Quantity, p.CatalogNumber, p.OrderDate, p.Requestor,
		p.QuotationStatus, p.TotalValue, p.Status, p.RequisitionID, p.Vendor,
		p.Chartfield, p.Notes, p.Storage)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+prodCols+` FROM products
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Product
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
