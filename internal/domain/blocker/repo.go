package blocker

import "context"

type Repository interface {
	Create(ctx context.Context, b *Blocker) error
	GetByID(ctx context.Context, id int64) (*Blocker, error)
	Update(ctx context.Context, b *Blocker) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Blocker, int, error)

	AppendLog(ctx context.Context, log *BlockerLog) error
	GetLogs(ctx context.Context, blockerID int64) ([]*BlockerLog, error)
}
