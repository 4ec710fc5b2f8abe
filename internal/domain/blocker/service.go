package blocker

import (
	"context"
	"encoding/json"
	"fmt"
)

type Service struct {
	blockers Repository
}

func NewService(blockers Repository) *Service {
	return &Service{blockers: blockers}
}

func snapshot(b *Blocker) *string {
	data, err := json.Marshal(b)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func (s *Service) Create(ctx context.Context, b *Blocker, userID *int64) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Units != nil && *b.Units < 0 {
		return fmt.Errorf("units cannot be negative")
	}
	b.CreatedByID = userID
	if err := s.blockers.Create(ctx, b); err != nil {
		return err
	}
	return s.blockers.AppendLog(ctx, &BlockerLog{
		BlockerID:   &b.ID,
		LogType:     "creation",
		NewValue:    snapshot(b),
		CreatedByID: userID,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Blocker, error) {
	return s.blockers.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, b *Blocker, userID *int64) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	old, err := s.blockers.GetByID(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("blocker not found")
	}
	if err := s.blockers.Update(ctx, b); err != nil {
		return err
	}
	return s.blockers.AppendLog(ctx, &BlockerLog{
		BlockerID:   &b.ID,
		LogType:     "update",
		OldValue:    snapshot(old),
		NewValue:    snapshot(b),
		CreatedByID: userID,
	})
}

func (s *Service) Delete(ctx context.Context, id int64, userID *int64) error {
	old, err := s.blockers.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("blocker not found")
	}
	if err := s.blockers.AppendLog(ctx, &BlockerLog{
		BlockerID:   &id,
		LogType:     "deletion",
		OldValue:    snapshot(old),
		CreatedByID: userID,
	}); err != nil {
		return err
	}
	return s.blockers.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Blocker, int, error) {
	return s.blockers.List(ctx, limit, offset)
}

func (s *Service) GetLogs(ctx context.Context, blockerID int64) ([]*BlockerLog, error) {
	return s.blockers.GetLogs(ctx, blockerID)
}
