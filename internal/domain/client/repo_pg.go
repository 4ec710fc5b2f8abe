package client

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

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

const clientCols = `id, name, institution, email, phone, address, subscription_id,
	created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Institution, &c.Email, &c.Phone,
		&c.Address, &c.SubscriptionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clients (name, institution, email, phone, address, subscription_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Institution, c.Email, c.Phone, c.Address, c.SubscriptionID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Client) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clients SET name = $1, institution = $2, email = $3, phone = $4,
			address = $5, subscription_id = $6, updated_at = now()
		WHERE id = $7`,
		c.Name, c.Institution, c.Email, c.Phone, c.Address, c.SubscriptionID, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+clientCols+` FROM clients ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

const configCols = `id, client_id, naming_scheme, prefix, last_batch_number,
	include_sample_types, created_at, updated_at`

func scanConfig(row pgx.Row) (*ProjectConfig, error) {
	var cfg ProjectConfig
	err := row.Scan(&cfg.ID, &cfg.ClientID, &cfg.NamingScheme, &cfg.Prefix,
		&cfg.LastBatchNumber, &cfg.IncludeSampleTypes, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repoPG) CreateConfig(ctx context.Context, cfg *ProjectConfig) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO client_project_config (client_id, naming_scheme, prefix,
			last_batch_number, include_sample_types)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		cfg.ClientID, cfg.NamingScheme, cfg.Prefix, cfg.LastBatchNumber,
		cfg.IncludeSampleTypes).
		Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

func (r *repoPG) GetConfigByClientID(ctx context.Context, clientID int64) (*ProjectConfig, error) {
	return scanConfig(r.conn(ctx).QueryRow(ctx,
		`SELECT `+configCols+` FROM client_project_config WHERE client_id = $1`, clientID))
}

func (r *repoPG) GetConfigForUpdate(ctx context.Context, clientID int64) (*ProjectConfig, error) {
	return scanConfig(r.conn(ctx).QueryRow(ctx,
		`SELECT `+configCols+` FROM client_project_config WHERE client_id = $1 FOR UPDATE`,
		clientID))
}

func (r *repoPG) UpdateConfig(ctx context.Context, cfg *ProjectConfig) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_project_config
		SET naming_scheme = $1, prefix = $2, include_sample_types = $3, updated_at = now()
		WHERE client_id = $4`,
		cfg.NamingScheme, cfg.Prefix, cfg.IncludeSampleTypes, cfg.ClientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListConfigs(ctx context.Context) ([]*ProjectConfig, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+configCols+` FROM client_project_config ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ProjectConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cfg)
	}
	return items, rows.Err()
}

func (r *repoPG) SetLastBatchNumber(ctx context.Context, configID int64, n int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_project_config SET last_batch_number = $1, updated_at = now()
		WHERE id = $2`, n, configID)
	return err
}

func (r *repoPG) ProjectIDExists(ctx context.Context, projectID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE project_id = $1)`, projectID).
		Scan(&exists)
	return exists, err
}
