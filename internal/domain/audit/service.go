package audit

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var knownEntityTypes = map[string]bool{
	"sample":  true,
	"project": true,
	"plate":   true,
}

// Record appends a deletion entry. Callers invoke this inside the same
// transaction that removes the entity so the trail and the delete commit
// together.
func (s *Service) Record(ctx context.Context, entry *DeletionLog) error {
	if !knownEntityTypes[entry.EntityType] {
		return fmt.Errorf("unknown entity type %q", entry.EntityType)
	}
	if entry.EntityIdentifier == "" {
		return fmt.Errorf("entity identifier is required")
	}
	if entry.DeletionReason == "" {
		return fmt.Errorf("deletion reason is required")
	}
	return s.repo.Append(ctx, entry)
}

func (s *Service) List(ctx context.Context, entityType string, limit, offset int) ([]*DeletionLog, int, error) {
	if entityType != "" && !knownEntityTypes[entityType] {
		return nil, 0, fmt.Errorf("unknown entity type %q", entityType)
	}
	return s.repo.List(ctx, entityType, limit, offset)
}
