package storage

import (
	"context"
	"fmt"
)

type Service struct {
	locations Repository
}

func NewService(locations Repository) *Service {
	return &Service{locations: locations}
}

func (s *Service) Create(ctx context.Context, loc *StorageLocation) error {
	if loc.Freezer == "" || loc.Shelf == "" || loc.Box == "" {
		return fmt.Errorf("freezer, shelf, and box are required")
	}
	if existing, err := s.locations.FindSlot(ctx, loc.Freezer, loc.Shelf, loc.Box, loc.Position); err == nil && existing != nil {
		return fmt.Errorf("storage location already registered")
	}
	loc.IsAvailable = true
	return s.locations.Create(ctx, loc)
}

func (s *Service) Get(ctx context.Context, id int64) (*StorageLocation, error) {
	return s.locations.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, loc *StorageLocation) error {
	if loc.Freezer == "" || loc.Shelf == "" || loc.Box == "" {
		return fmt.Errorf("freezer, shelf, and box are required")
	}
	return s.locations.Update(ctx, loc)
}

func (s *Service) List(ctx context.Context, availableOnly bool, limit, offset int) ([]*StorageLocation, int, error) {
	return s.locations.List(ctx, availableOnly, limit, offset)
}
