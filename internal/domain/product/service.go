package product

import (
	"context"
	"fmt"
)

type Service struct {
	products Repository
}

func NewService(products Repository) *Service {
	return &Service{products: products}
}

func (s *Service) Create(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	return s.products.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Product) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	return s.products.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	return s.products.List(ctx, limit, offset)
}
