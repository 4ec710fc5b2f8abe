package client

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validateClient(c *Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("client name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c *Client) error {
	if err := validateClient(c); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Client) error {
	if err := validateClient(c); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func validateConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.NamingScheme) == "" {
		return fmt.Errorf("naming scheme is required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if len(prefix) > 10 {
		return fmt.Errorf("prefix must be 10 characters or fewer")
	}
	cfg.Prefix = prefix
	return nil
}

func (s *Service) CreateConfig(ctx context.Context, cfg *ProjectConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, cfg.ClientID); err != nil {
		return fmt.Errorf("client not found")
	}
	if existing, _ := s.repo.GetConfigByClientID(ctx, cfg.ClientID); existing != nil {
		return fmt.Errorf("configuration already exists for this client")
	}
	cfg.LastBatchNumber = 0
	return s.repo.CreateConfig(ctx, cfg)
}

func (s *Service) GetConfig(ctx context.Context, clientID int64) (*ProjectConfig, error) {
	return s.repo.GetConfigByClientID(ctx, clientID)
}

func (s *Service) UpdateConfig(ctx context.Context, cfg *ProjectConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return s.repo.UpdateConfig(ctx, cfg)
}

func (s *Service) ListConfigs(ctx context.Context) ([]*ProjectConfig, error) {
	return s.repo.ListConfigs(ctx)
}

// GenerateProjectID builds the next project id for a client. Preview requests
// read the config without touching it; otherwise the batch number is claimed
// under a row lock so concurrent callers receive distinct consecutive ids.
func (s *Service) GenerateProjectID(ctx context.Context, req GenerateProjectIDRequest) (*GenerateProjectIDResponse, error) {
	if req.Preview {
		cfg, err := s.repo.GetConfigByClientID(ctx, req.ClientID)
		if err != nil {
			return nil, fmt.Errorf("no project ID configuration found for this client")
		}
		batch := cfg.LastBatchNumber + 1
		return &GenerateProjectIDResponse{
			ProjectID:   buildProjectID(cfg, req, batch),
			BatchNumber: batch,
		}, nil
	}

	var resp *GenerateProjectIDResponse
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		cfg, err := s.repo.GetConfigForUpdate(ctx, req.ClientID)
		if err != nil {
			return fmt.Errorf("no project ID configuration found for this client")
		}
		batch := cfg.LastBatchNumber + 1
		if err := s.repo.SetLastBatchNumber(ctx, cfg.ID, batch); err != nil {
			return err
		}
		resp = &GenerateProjectIDResponse{
			ProjectID:   buildProjectID(cfg, req, batch),
			BatchNumber: batch,
			Reserved:    true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func buildProjectID(cfg *ProjectConfig, req GenerateProjectIDRequest, batch int) string {
	id := fmt.Sprintf("%s%04d", cfg.Prefix, batch)

	if cfg.IncludeSampleTypes {
		var suffixes []string
		if req.StoolCount > 0 {
			suffixes = append(suffixes, fmt.Sprintf("%dST", req.StoolCount))
		}
		if req.VaginalCount > 0 {
			suffixes = append(suffixes, fmt.Sprintf("%dVG", req.VaginalCount))
		}
		if req.OtherCount > 0 {
			suffixes = append(suffixes, fmt.Sprintf("%dOT", req.OtherCount))
		}
		if len(suffixes) > 0 {
			id += "_" + strings.Join(suffixes, "_")
		}
	}
	if req.CustomSuffix != "" {
		id += "_" + req.CustomSuffix
	}
	return id
}

func (s *Service) CheckProjectID(ctx context.Context, projectID string) (bool, error) {
	if projectID == "" {
		return false, fmt.Errorf("project_id is required")
	}
	return s.repo.ProjectIDExists(ctx, projectID)
}
