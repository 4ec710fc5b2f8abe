package employee

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	employees Repository
}

func NewService(employees Repository) *Service {
	return &Service{employees: employees}
}

func (s *Service) validate(e *Employee) error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Email == "" || !strings.Contains(e.Email, "@") {
		return fmt.Errorf("valid email is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Department == "" {
		return fmt.Errorf("department is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, e *Employee) error {
	if err := s.validate(e); err != nil {
		return err
	}
	if existing, err := s.employees.GetByEmail(ctx, e.Email); err == nil && existing != nil {
		return fmt.Errorf("employee with email %s already exists", e.Email)
	}
	e.IsActive = true
	return s.employees.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id int64) (*Employee, error) {
	return s.employees.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, e *Employee) error {
	if err := s.validate(e); err != nil {
		return err
	}
	return s.employees.Update(ctx, e)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.employees.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Employee, error) {
	return s.employees.List(ctx, activeOnly)
}
