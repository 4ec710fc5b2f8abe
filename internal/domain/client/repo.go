package client

import "context"

type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id int64) (*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Client, int, error)

	CreateConfig(ctx context.Context, cfg *ProjectConfig) error
	GetConfigByClientID(ctx context.Context, clientID int64) (*ProjectConfig, error)
	UpdateConfig(ctx context.Context, cfg *ProjectConfig) error
	ListConfigs(ctx context.Context) ([]*ProjectConfig, error)

	// GetConfigForUpdate row-locks the config so the caller can bump the
	// batch number without racing a concurrent generation.
	GetConfigForUpdate(ctx context.Context, clientID int64) (*ProjectConfig, error)
	SetLastBatchNumber(ctx context.Context, configID int64, n int) error

	ProjectIDExists(ctx context.Context, projectID string) (bool, error)

	// InTx runs fn inside a single database transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
