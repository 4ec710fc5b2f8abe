package sampletype

import "context"

type Repository interface {
	Create(ctx context.Context, st *SampleType) error
	GetByID(ctx context.Context, id int64) (*SampleType, error)
	GetByName(ctx context.Context, name string) (*SampleType, error)
	Update(ctx context.Context, st *SampleType) error
	List(ctx context.Context, activeOnly bool) ([]*SampleType, error)
}
