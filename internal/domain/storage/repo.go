package storage

import "context"

type Repository interface {
	Create(ctx context.Context, loc *StorageLocation) error
	GetByID(ctx context.Context, id int64) (*StorageLocation, error)
	Update(ctx context.Context, loc *StorageLocation) error
	List(ctx context.Context, availableOnly bool, limit, offset int) ([]*StorageLocation, int, error)
	FindSlot(ctx context.Context, freezer, shelf, box string, position *string) (*StorageLocation, error)
}
