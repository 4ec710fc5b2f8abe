package client

import (
	"context"
	"fmt"
	"testing"
)

type mockRepo struct {
	clients    map[int64]*Client
	configs    map[int64]*ProjectConfig // keyed by client id
	projectIDs map[string]bool
	nextID     int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clients:    make(map[int64]*Client),
		configs:    make(map[int64]*ProjectConfig),
		projectIDs: make(map[string]bool),
		nextID:     1,
	}
}

func (m *mockRepo) Create(_ context.Context, c *Client) error {
	c.ID = m.nextID
	m.nextID++
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockRepo) Update(_ context.Context, c *Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.clients[c.ID] = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	delete(m.clients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Client, int, error) {
	var r []*Client
	for _, c := range m.clients {
		r = append(r, c)
	}
	return r, len(r), nil
}

func (m *mockRepo) CreateConfig(_ context.Context, cfg *ProjectConfig) error {
	cfg.ID = m.nextID
	m.nextID++
	m.configs[cfg.ClientID] = cfg
	return nil
}

func (m *mockRepo) GetConfigByClientID(_ context.Context, clientID int64) (*ProjectConfig, error) {
	cfg, ok := m.configs[clientID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return cfg, nil
}

func (m *mockRepo) GetConfigForUpdate(ctx context.Context, clientID int64) (*ProjectConfig, error) {
	return m.GetConfigByClientID(ctx, clientID)
}

func (m *mockRepo) UpdateConfig(_ context.Context, cfg *ProjectConfig) error {
	existing, ok := m.configs[cfg.ClientID]
	if !ok {
		return fmt.Errorf("not found")
	}
	cfg.ID = existing.ID
	cfg.LastBatchNumber = existing.LastBatchNumber
	m.configs[cfg.ClientID] = cfg
	return nil
}

func (m *mockRepo) ListConfigs(_ context.Context) ([]*ProjectConfig, error) {
	var r []*ProjectConfig
	for _, cfg := range m.configs {
		r = append(r, cfg)
	}
	return r, nil
}

func (m *mockRepo) SetLastBatchNumber(_ context.Context, configID int64, n int) error {
	for _, cfg := range m.configs {
		if cfg.ID == configID {
			cfg.LastBatchNumber = n
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (m *mockRepo) ProjectIDExists(_ context.Context, projectID string) (bool, error) {
	return m.projectIDs[projectID], nil
}

func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func seedClientWithConfig(t *testing.T, svc *Service, includeSampleTypes bool) *Client {
	t.Helper()
	cl := &Client{Name: "Microbiome Insights", Email: "lab@microbiome.example"}
	if err := svc.Create(context.Background(), cl); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	cfg := &ProjectConfig{
		ClientID:           cl.ID,
		NamingScheme:       "prefix_batch",
		Prefix:             "MBI",
		IncludeSampleTypes: includeSampleTypes,
	}
	if err := svc.CreateConfig(context.Background(), cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return cl
}

func TestCreateClient_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Create(context.Background(), &Client{Email: "a@b.c"}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.Create(context.Background(), &Client{Name: "Acme", Email: "not-an-email"}); err == nil {
		t.Error("expected error for invalid email")
	}
}

func TestCreateConfig_RejectsDuplicateAndUnknownClient(t *testing.T) {
	svc := NewService(newMockRepo())
	cl := seedClientWithConfig(t, svc, true)

	dup := &ProjectConfig{ClientID: cl.ID, NamingScheme: "prefix_batch", Prefix: "MBI"}
	if err := svc.CreateConfig(context.Background(), dup); err == nil {
		t.Error("expected error for duplicate config")
	}

	orphan := &ProjectConfig{ClientID: 999, NamingScheme: "prefix_batch", Prefix: "X"}
	if err := svc.CreateConfig(context.Background(), orphan); err == nil {
		t.Error("expected error for unknown client")
	}
}

func TestGenerateProjectID_PreviewDoesNotAdvanceBatch(t *testing.T) {
	svc := NewService(newMockRepo())
	cl := seedClientWithConfig(t, svc, false)

	for i := 0; i < 3; i++ {
		resp, err := svc.GenerateProjectID(context.Background(),
			GenerateProjectIDRequest{ClientID: cl.ID, Preview: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.ProjectID != "MBI0001" || resp.BatchNumber != 1 || resp.Reserved {
			t.Errorf("preview %d: got %+v, want MBI0001 batch 1 unreserved", i, resp)
		}
	}
}

func TestGenerateProjectID_ReservesConsecutiveNumbers(t *testing.T) {
	svc := NewService(newMockRepo())
	cl := seedClientWithConfig(t, svc, false)

	for i := 1; i <= 3; i++ {
		resp, err := svc.GenerateProjectID(context.Background(),
			GenerateProjectIDRequest{ClientID: cl.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := fmt.Sprintf("MBI%04d", i)
		if resp.ProjectID != want || !resp.Reserved {
			t.Errorf("call %d: got %+v, want %s reserved", i, resp, want)
		}
	}
}

func TestGenerateProjectID_SampleTypeSuffixes(t *testing.T) {
	svc := NewService(newMockRepo())
	cl := seedClientWithConfig(t, svc, true)

	resp, err := svc.GenerateProjectID(context.Background(), GenerateProjectIDRequest{
		ClientID:     cl.ID,
		StoolCount:   24,
		VaginalCount: 8,
		OtherCount:   2,
		CustomSuffix: "PILOT",
		Preview:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "MBI0001_24ST_8VG_2OT_PILOT"
	if resp.ProjectID != want {
		t.Errorf("project id = %q, want %q", resp.ProjectID, want)
	}
}

func TestGenerateProjectID_NoConfig(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.GenerateProjectID(context.Background(),
		GenerateProjectIDRequest{ClientID: 42}); err == nil {
		t.Error("expected error when client has no config")
	}
}

func TestCheckProjectID(t *testing.T) {
	repo := newMockRepo()
	repo.projectIDs["CMBP00012"] = true
	svc := NewService(repo)

	exists, err := svc.CheckProjectID(context.Background(), "CMBP00012")
	if err != nil || !exists {
		t.Errorf("expected existing id, got exists=%v err=%v", exists, err)
	}
	exists, err = svc.CheckProjectID(context.Background(), "CMBP99999")
	if err != nil || exists {
		t.Errorf("expected missing id, got exists=%v err=%v", exists, err)
	}
	if _, err := svc.CheckProjectID(context.Background(), ""); err == nil {
		t.Error("expected error for empty id")
	}
}
