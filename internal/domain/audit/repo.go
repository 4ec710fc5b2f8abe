package audit

import "context"

type Repository interface {
	Append(ctx context.Context, entry *DeletionLog) error
	List(ctx context.Context, entityType string, limit, offset int) ([]*DeletionLog, int, error)
}
