package sampletype

import (
	"context"
	"fmt"
	"regexp"
)

type Service struct {
	types Repository
}

func NewService(types Repository) *Service {
	return &Service{types: types}
}

var nameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

func (s *Service) Create(ctx context.Context, st *SampleType) error {
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !nameRe.MatchString(st.Name) {
		return fmt.Errorf("name must be lowercase snake_case: %s", st.Name)
	}
	if st.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if existing, err := s.types.GetByName(ctx, st.Name); err == nil && existing != nil {
		return fmt.Errorf("sample type %s already exists", st.Name)
	}
	st.IsActive = true
	return s.types.Create(ctx, st)
}

func (s *Service) Get(ctx context.Context, id int64) (*SampleType, error) {
	return s.types.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, st *SampleType) error {
	if st.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	return s.types.Update(ctx, st)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*SampleType, error) {
	return s.types.List(ctx, activeOnly)
}
