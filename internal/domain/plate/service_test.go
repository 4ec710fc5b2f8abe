package plate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/lims/lims/internal/domain/identity"
	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/platform/auth"
)

type mockRepo struct {
	plates   map[int64]*Plate
	wells    map[int64]*WellAssignment
	controls map[int64]*Control
	samples  *mockSampleRepo
	nextID   int64
}

func newMockRepo(samples *mockSampleRepo) *mockRepo {
	return &mockRepo{
		plates:   make(map[int64]*Plate),
		wells:    make(map[int64]*WellAssignment),
		controls: make(map[int64]*Control),
		samples:  samples,
		nextID:   1,
	}
}

func (m *mockRepo) Create(ctx context.Context, p *Plate) error {
	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.plates[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Plate, error) {
	p, ok := m.plates[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *p
	cp.SampleCount = 0
	for _, w := range m.wells {
		if w.PlateRefID == id && !w.IsControl {
			cp.SampleCount++
		}
	}
	cp.ControlCount = 0
	for _, c := range m.controls {
		if c.PlateRefID == id {
			cp.ControlCount++
		}
	}
	return &cp, nil
}

// The mock has no row locks; the locked read is a plain read here.
func (m *mockRepo) GetByIDForUpdate(ctx context.Context, id int64) (*Plate, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(ctx context.Context, p *Plate) error {
	if _, ok := m.plates[p.ID]; !ok {
		return fmt.Errorf("not found")
	}
	cp := *p
	m.plates[p.ID] = &cp
	return nil
}

func (m *mockRepo) List(ctx context.Context, f ListFilter) ([]*Plate, int, error) {
	var out []*Plate
	for id := range m.plates {
		p, _ := m.GetByID(ctx, id)
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) CreateWell(ctx context.Context, w *WellAssignment) error {
	w.ID = m.nextID
	m.nextID++
	cp := *w
	m.wells[w.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteWellBySample(ctx context.Context, plateRefID, sampleID int64) error {
	for id, w := range m.wells {
		if w.PlateRefID == plateRefID && w.SampleID != nil && *w.SampleID == sampleID {
			delete(m.wells, id)
		}
	}
	return nil
}

func (m *mockRepo) DeleteWellByPosition(ctx context.Context, plateRefID int64, position string) error {
	for id, w := range m.wells {
		if w.PlateRefID == plateRefID && w.WellPosition == position {
			delete(m.wells, id)
		}
	}
	return nil
}

func (m *mockRepo) ListWells(ctx context.Context, plateRefID int64) ([]*WellAssignment, error) {
	var out []*WellAssignment
	for _, w := range m.wells {
		if w.PlateRefID == plateRefID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateControl(ctx context.Context, c *Control) error {
	c.ID = m.nextID
	m.nextID++
	cp := *c
	m.controls[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetControlByControlID(ctx context.Context, plateRefID int64, controlID string) (*Control, error) {
	for _, c := range m.controls {
		if c.PlateRefID == plateRefID && c.ControlID == controlID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) DeleteControl(ctx context.Context, id int64) error {
	if _, ok := m.controls[id]; !ok {
		return fmt.Errorf("not found")
	}
	delete(m.controls, id)
	return nil
}

func (m *mockRepo) ListControls(ctx context.Context, plateRefID int64) ([]*Control, error) {
	var out []*Control
	for _, c := range m.controls {
		if c.PlateRefID == plateRefID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CountControls(ctx context.Context, plateRefID int64, controlType, category string) (int, error) {
	count := 0
	for _, c := range m.controls {
		if c.PlateRefID == plateRefID && c.ControlType == controlType && c.ControlCategory == category {
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) UpdateControl(ctx context.Context, c *Control) error {
	if _, ok := m.controls[c.ID]; !ok {
		return fmt.Errorf("not found")
	}
	cp := *c
	m.controls[c.ID] = &cp
	return nil
}

// InTx snapshots both stores and restores them on error, mirroring a rollback.
func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	plates := snapshotMap(m.plates)
	wells := snapshotMap(m.wells)
	controls := snapshotMap(m.controls)
	samples := snapshotMap(m.samples.samples)

	if err := fn(ctx); err != nil {
		m.plates = plates
		m.wells = wells
		m.controls = controls
		m.samples.samples = samples
		return err
	}
	return nil
}

func snapshotMap[V any](in map[int64]*V) map[int64]*V {
	out := make(map[int64]*V, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

type mockSampleRepo struct {
	samples map[int64]*sample.Sample
	logs    []*sample.Log
	nextID  int64
}

func newMockSampleRepo() *mockSampleRepo {
	return &mockSampleRepo{samples: make(map[int64]*sample.Sample), nextID: 1}
}

func (m *mockSampleRepo) Create(ctx context.Context, s *sample.Sample) error {
	s.ID = m.nextID
	m.nextID++
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) GetByID(ctx context.Context, id int64) (*sample.Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockSampleRepo) GetByBarcode(ctx context.Context, barcode string) (*sample.Sample, error) {
	for _, s := range m.samples {
		if s.Barcode == barcode {
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockSampleRepo) Update(ctx context.Context, s *sample.Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return fmt.Errorf("not found")
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) List(ctx context.Context, f sample.ListFilter) ([]*sample.Sample, int, error) {
	return nil, 0, nil
}

func (m *mockSampleRepo) BarcodeExists(ctx context.Context, barcode string) (bool, error) {
	return false, nil
}

func (m *mockSampleRepo) ListByStatuses(ctx context.Context, statuses []string, limit, offset int) ([]*sample.Sample, int, error) {
	return nil, 0, nil
}

func (m *mockSampleRepo) ListReprocessQueue(ctx context.Context, limit, offset int) ([]*sample.Sample, int, error) {
	return nil, 0, nil
}

func (m *mockSampleRepo) ListByPlate(ctx context.Context, plateRefID int64) ([]*sample.Sample, error) {
	var out []*sample.Sample
	for _, s := range m.samples {
		if s.ExtractionPlateRefID != nil && *s.ExtractionPlateRefID == plateRefID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSampleRepo) AppendLog(ctx context.Context, log *sample.Log) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockSampleRepo) GetLogs(ctx context.Context, sampleID int64) ([]*sample.Log, error) {
	return nil, nil
}

func (m *mockSampleRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	samples := snapshotMap(m.samples)
	logs := append([]*sample.Log(nil), m.logs...)
	if err := fn(ctx); err != nil {
		m.samples = samples
		m.logs = logs
		return err
	}
	return nil
}

func (m *mockSampleRepo) CreateApproval(ctx context.Context, a *sample.DiscrepancyApproval) error {
	return nil
}

func (m *mockSampleRepo) GetApproval(ctx context.Context, id int64) (*sample.DiscrepancyApproval, error) {
	return nil, fmt.Errorf("not found")
}

func (m *mockSampleRepo) ListApprovals(ctx context.Context, sampleID int64) ([]*sample.DiscrepancyApproval, error) {
	return nil, nil
}

func (m *mockSampleRepo) UpdateApproval(ctx context.Context, a *sample.DiscrepancyApproval) error {
	return nil
}

func (m *mockSampleRepo) CreateApprovalAttachment(ctx context.Context, a *sample.ApprovalAttachment) error {
	return nil
}

func (m *mockSampleRepo) GetApprovalAttachment(ctx context.Context, id int64) (*sample.ApprovalAttachment, error) {
	return nil, fmt.Errorf("not found")
}

func (m *mockSampleRepo) ListApprovalAttachments(ctx context.Context, approvalID int64) ([]*sample.ApprovalAttachment, error) {
	return nil, nil
}

type mockTechs struct {
	users map[int64]*identity.User
}

func (m *mockTechs) Get(ctx context.Context, id int64) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return u, nil
}

func newTestService() (*Service, *mockRepo, *mockSampleRepo, *mockTechs) {
	sampleRepo := newMockSampleRepo()
	repo := newMockRepo(sampleRepo)
	techs := &mockTechs{users: map[int64]*identity.User{
		10: {ID: 10, Username: "tech", Role: auth.RoleLabTech},
		11: {ID: 11, Username: "manager", Role: auth.RoleLabManager},
		12: {ID: 12, Username: "sales", Role: auth.RoleSales},
	}}
	return NewService(repo, sampleRepo, techs, nil), repo, sampleRepo, techs
}

func supervisor() Actor {
	id := int64(2)
	return Actor{ID: &id, Username: "super", Role: auth.RoleLabManager}
}

func seedPlate(t *testing.T, repo *mockRepo, status string) *Plate {
	t.Helper()
	p := &Plate{PlateID: "EXT-20240115-AB12", PlateName: "Batch 12", Status: status}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed plate: %v", err)
	}
	return p
}

func seedQueuedSample(t *testing.T, repo *mockSampleRepo) *sample.Sample {
	t.Helper()
	smp := &sample.Sample{
		Barcode:   fmt.Sprintf("%06d", repo.nextID),
		ProjectID: 1,
		Status:    sample.StatusExtractionQueue,
	}
	if err := repo.Create(context.Background(), smp); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	return smp
}

func TestCreate(t *testing.T) {
	svc, _, _, _ := newTestService()
	p, err := svc.Create(context.Background(), CreateInput{PlateName: "Morning run"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusDraft {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if !strings.HasPrefix(p.PlateID, "EXT-") || len(p.PlateID) != len("EXT-20240115-AB12") {
		t.Errorf("plate id = %q", p.PlateID)
	}
}

func TestCreate_RejectsNonTechAssignment(t *testing.T) {
	svc, _, _, _ := newTestService()
	techID := int64(12)
	if _, err := svc.Create(context.Background(), CreateInput{PlateName: "x", AssignedTechID: &techID}); err == nil {
		t.Fatal("expected sales rep assignment to be rejected")
	}
}

func TestUpdate_DraftOnly(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	name := "renamed"
	draft := seedPlate(t, repo, StatusDraft)
	if _, err := svc.Update(ctx, draft.ID, UpdateInput{PlateName: &name}); err != nil {
		t.Fatalf("Update draft: %v", err)
	}

	for _, status := range []string{StatusFinalized, StatusInProgress, StatusCompleted, StatusFailed} {
		p := seedPlate(t, repo, status)
		if _, err := svc.Update(ctx, p.ID, UpdateInput{PlateName: &name}); err == nil {
			t.Errorf("expected %s plate to reject edits", status)
		}
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		pos  string
		ok   bool
		row  string
		col  int
	}{
		{"A1", true, "A", 1},
		{"H12", true, "H", 12},
		{"B7", true, "B", 7},
		{"I1", false, "", 0},
		{"A13", false, "", 0},
		{"A0", false, "", 0},
		{"7B", false, "", 0},
		{"", false, "", 0},
	}
	for _, tt := range tests {
		row, col, err := ParsePosition(tt.pos)
		if tt.ok && (err != nil || row != tt.row || col != tt.col) {
			t.Errorf("ParsePosition(%q) = %q, %d, %v", tt.pos, row, col, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParsePosition(%q) should fail", tt.pos)
		}
	}
}

func TestAddSamples(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)
	b := seedQueuedSample(t, sampleRepo)

	err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID, b.ID},
		Positions: []string{"A1", "B1"},
	}, supervisor())
	if err != nil {
		t.Fatalf("AddSamples: %v", err)
	}

	got, _ := sampleRepo.GetByID(ctx, a.ID)
	if got.ExtractionPlateRefID == nil || *got.ExtractionPlateRefID != p.ID {
		t.Error("sample not linked to plate")
	}
	if got.ExtractionWellPosition == nil || *got.ExtractionWellPosition != "A1" {
		t.Errorf("well = %v, want A1", got.ExtractionWellPosition)
	}
	wells, _ := repo.ListWells(ctx, p.ID)
	if len(wells) != 2 {
		t.Errorf("got %d wells, want 2", len(wells))
	}
}

func TestAddSamples_CountMismatch(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)

	err := svc.AddSamples(context.Background(), p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"A1", "A2"},
	}, supervisor())
	if err == nil {
		t.Fatal("expected position count mismatch to be rejected")
	}
}

func TestAddSamples_AtomicOnBadSample(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	good := seedQueuedSample(t, sampleRepo)
	taken := seedQueuedSample(t, sampleRepo)

	other := seedPlate(t, repo, StatusDraft)
	if err := svc.AddSamples(ctx, other.ID, AddSamplesRequest{
		SampleIDs: []int64{taken.ID},
		Positions: []string{"A1"},
	}, supervisor()); err != nil {
		t.Fatalf("seed other plate: %v", err)
	}

	err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{good.ID, taken.ID},
		Positions: []string{"A1", "A2"},
	}, supervisor())
	if err == nil || !strings.Contains(err.Error(), "already assigned") {
		t.Fatalf("err = %v, want already-assigned rejection", err)
	}

	got, _ := sampleRepo.GetByID(ctx, good.ID)
	if got.ExtractionPlateRefID != nil {
		t.Error("batch must roll back: first sample should stay unassigned")
	}
	wells, _ := repo.ListWells(ctx, p.ID)
	if len(wells) != 0 {
		t.Errorf("batch must roll back: got %d wells", len(wells))
	}
}

func TestAddSamples_AutoFillColumnMajor(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)
	b := seedQueuedSample(t, sampleRepo)

	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{SampleIDs: []int64{a.ID, b.ID}}, supervisor()); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	gotA, _ := sampleRepo.GetByID(ctx, a.ID)
	gotB, _ := sampleRepo.GetByID(ctx, b.ID)
	if *gotA.ExtractionWellPosition != "A1" || *gotB.ExtractionWellPosition != "B1" {
		t.Errorf("auto-fill gave %s, %s; want A1, B1",
			*gotA.ExtractionWellPosition, *gotB.ExtractionWellPosition)
	}
}

func TestAddSamples_DraftOnly(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	p := seedPlate(t, repo, StatusFinalized)
	a := seedQueuedSample(t, sampleRepo)

	err := svc.AddSamples(context.Background(), p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"A1"},
	}, supervisor())
	if err == nil {
		t.Fatal("expected finalized plate to reject edits")
	}
}

func TestRemoveSample(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)

	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"C3"},
	}, supervisor()); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if err := svc.RemoveSample(ctx, p.ID, a.ID, supervisor()); err != nil {
		t.Fatalf("RemoveSample: %v", err)
	}

	got, _ := sampleRepo.GetByID(ctx, a.ID)
	if got.ExtractionPlateRefID != nil || got.ExtractionWellPosition != nil {
		t.Error("sample should be freed for reassignment")
	}
	wells, _ := repo.ListWells(ctx, p.ID)
	if len(wells) != 0 {
		t.Errorf("well should be freed, got %d wells", len(wells))
	}
}

func TestAddControls(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)

	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11"},
	}, supervisor()); err == nil {
		t.Error("expected single position to be rejected")
	}
	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: "mystery",
		Positions:       []string{"H11", "H12"},
	}, supervisor()); err == nil {
		t.Error("expected unknown category to be rejected")
	}

	controls, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11", "H12"},
	}, supervisor())
	if err != nil {
		t.Fatalf("AddControls: %v", err)
	}
	if len(controls) != 2 {
		t.Fatalf("got %d controls, want 2", len(controls))
	}
	if controls[0].ControlType != ControlPositive || controls[0].WellPosition != "H11" {
		t.Errorf("first control = %+v, want positive at H11", controls[0])
	}
	if controls[1].ControlType != ControlNegative || controls[1].WellPosition != "H12" {
		t.Errorf("second control = %+v, want negative at H12", controls[1])
	}
	if controls[0].ControlID != "EXT-PTC-AB12" || controls[1].ControlID != "EXT-NTC-AB12" {
		t.Errorf("control ids = %q, %q", controls[0].ControlID, controls[1].ControlID)
	}

	second, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"G11", "G12"},
	}, supervisor())
	if err != nil {
		t.Fatalf("AddControls second set: %v", err)
	}
	if second[0].ControlID != "EXT-PTC-AB12-1" || second[0].SetNumber != 2 {
		t.Errorf("second set = %q set %d", second[0].ControlID, second[0].SetNumber)
	}

	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryLibraryPrep,
		Positions:       []string{"H11", "H12"},
	}, supervisor()); err == nil {
		t.Error("expected occupied positions to be rejected")
	}
}

func TestAddControls_ClaimWellRows(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)

	controls, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11", "H12"},
	}, supervisor())
	if err != nil {
		t.Fatalf("AddControls: %v", err)
	}

	wells, _ := repo.ListWells(ctx, p.ID)
	if len(wells) != 2 {
		t.Fatalf("got %d well rows, want 2", len(wells))
	}
	for _, w := range wells {
		if !w.IsControl || w.SampleID != nil {
			t.Errorf("control well row = %+v, want is_control with nil sample", w)
		}
	}

	a := seedQueuedSample(t, sampleRepo)
	err = svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"H11"},
	}, supervisor())
	if err == nil || !strings.Contains(err.Error(), "occupied") {
		t.Fatalf("err = %v, want occupied rejection for control position", err)
	}

	if err := svc.RemoveControl(ctx, p.ID, controls[0].ControlID, supervisor()); err != nil {
		t.Fatalf("RemoveControl: %v", err)
	}
	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"H11"},
	}, supervisor()); err != nil {
		t.Fatalf("removing the control should free its well: %v", err)
	}
}

func TestRemoveControl(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)

	controls, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryLibraryPrep,
		Positions:       []string{"G11", "G12"},
	}, supervisor())
	if err != nil {
		t.Fatalf("AddControls: %v", err)
	}
	if err := svc.RemoveControl(ctx, p.ID, controls[0].ControlID, supervisor()); err != nil {
		t.Fatalf("RemoveControl: %v", err)
	}
	remaining, _ := repo.ListControls(ctx, p.ID)
	if len(remaining) != 1 {
		t.Errorf("got %d controls, want 1", len(remaining))
	}
}

func TestFinalize(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)

	if _, err := svc.Finalize(ctx, p.ID, 10, supervisor()); err == nil {
		t.Error("expected empty plate to be rejected")
	}

	a := seedQueuedSample(t, sampleRepo)
	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"A1"},
	}, supervisor()); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}

	if _, err := svc.Finalize(ctx, p.ID, 10, supervisor()); err == nil {
		t.Error("expected plate without controls to be rejected")
	}

	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11", "H12"},
	}, supervisor()); err != nil {
		t.Fatalf("AddControls: %v", err)
	}

	if _, err := svc.Finalize(ctx, p.ID, 12, supervisor()); err == nil {
		t.Error("expected sales rep technician to be rejected")
	}
	if _, err := svc.Finalize(ctx, p.ID, 99, supervisor()); err == nil {
		t.Error("expected unknown technician to be rejected")
	}

	got, err := svc.Finalize(ctx, p.ID, 10, supervisor())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != StatusFinalized || got.AssignedTechID == nil || *got.AssignedTechID != 10 {
		t.Errorf("finalized plate = %+v", got)
	}

	if _, err := svc.Finalize(ctx, p.ID, 10, supervisor()); err == nil {
		t.Error("expected double finalize to be rejected")
	}
}

func TestStartAndComplete(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)

	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"A1"},
	}, supervisor()); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11", "H12"},
	}, supervisor()); err != nil {
		t.Fatalf("AddControls: %v", err)
	}

	if _, err := svc.Start(ctx, p.ID, supervisor()); err == nil {
		t.Error("expected start on draft plate to be rejected")
	}

	if _, err := svc.Finalize(ctx, p.ID, 10, supervisor()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	started, err := svc.Start(ctx, p.ID, supervisor())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != StatusInProgress || started.StartedDate == nil {
		t.Errorf("started plate = %+v", started)
	}
	got, _ := sampleRepo.GetByID(ctx, a.ID)
	if got.Status != sample.StatusInExtraction {
		t.Errorf("sample status = %q, want in_extraction", got.Status)
	}

	conc := 42.5
	pass := true
	completed, err := svc.Complete(ctx, p.ID, map[string]WellQC{
		"A1":  {Concentration: &conc},
		"H11": {Concentration: &conc, Pass: &pass},
	}, supervisor())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != StatusCompleted || completed.CompletedDate == nil {
		t.Errorf("completed plate = %+v", completed)
	}
	got, _ = sampleRepo.GetByID(ctx, a.ID)
	if got.Status != sample.StatusExtracted {
		t.Errorf("sample status = %q, want extracted", got.Status)
	}
	if got.ExtractionConcentration == nil || *got.ExtractionConcentration != conc {
		t.Errorf("sample concentration = %v, want %v", got.ExtractionConcentration, conc)
	}

	controls, _ := repo.ListControls(ctx, p.ID)
	for _, c := range controls {
		if c.WellPosition == "H11" {
			if c.Concentration == nil || *c.Concentration != conc || c.QCPass == nil || !*c.QCPass {
				t.Errorf("control QC not recorded: %+v", c)
			}
		}
	}
}

func TestFail(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusInProgress)

	a := seedQueuedSample(t, sampleRepo)
	a.Status = sample.StatusInExtraction
	a.ExtractionPlateRefID = &p.ID
	if err := sampleRepo.Update(ctx, a); err != nil {
		t.Fatalf("link sample: %v", err)
	}

	if _, err := svc.Fail(ctx, p.ID, "", supervisor()); err == nil {
		t.Error("expected missing reason to be rejected")
	}
	got, err := svc.Fail(ctx, p.ID, "lysis buffer lot expired", supervisor())
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}

	failed, _ := sampleRepo.GetByID(ctx, a.ID)
	if failed.Status != sample.StatusFailed {
		t.Errorf("sample status = %q, want failed", failed.Status)
	}
	if failed.FailedStage == nil || *failed.FailedStage != "extraction" {
		t.Errorf("failed stage = %v, want extraction", failed.FailedStage)
	}

	draft := seedPlate(t, repo, StatusDraft)
	if _, err := svc.Fail(ctx, draft.ID, "oops", supervisor()); err == nil {
		t.Error("expected draft plate fail to be rejected")
	}
}

func TestGetLayout(t *testing.T) {
	svc, repo, sampleRepo, _ := newTestService()
	ctx := context.Background()
	p := seedPlate(t, repo, StatusDraft)
	a := seedQueuedSample(t, sampleRepo)

	if err := svc.AddSamples(ctx, p.ID, AddSamplesRequest{
		SampleIDs: []int64{a.ID},
		Positions: []string{"B2"},
	}, supervisor()); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if _, err := svc.AddControls(ctx, p.ID, ControlSetRequest{
		ControlCategory: CategoryExtraction,
		Positions:       []string{"H11", "H12"},
	}, supervisor()); err != nil {
		t.Fatalf("AddControls: %v", err)
	}

	layout, err := svc.GetLayout(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetLayout: %v", err)
	}
	if len(layout.Wells) != TotalWells {
		t.Fatalf("got %d wells, want %d", len(layout.Wells), TotalWells)
	}
	if layout.SampleCount != 1 || layout.ControlCount != 2 || layout.EmptyCount != 93 {
		t.Errorf("counts = %d/%d/%d", layout.SampleCount, layout.ControlCount, layout.EmptyCount)
	}
	for _, w := range layout.Wells {
		switch w.Position {
		case "B2":
			if w.ContentType != "sample" || w.SampleBarcode == nil {
				t.Errorf("B2 = %+v", w)
			}
		case "H11", "H12":
			if w.ContentType != "control" {
				t.Errorf("%s = %+v", w.Position, w)
			}
		default:
			if w.ContentType != "empty" {
				t.Errorf("%s should be empty, got %+v", w.Position, w)
			}
		}
	}
}
