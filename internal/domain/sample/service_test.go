package sample

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/blobstore"
)

type mockRepo struct {
	samples     map[int64]*Sample
	logs        []*Log
	approvals   map[int64]*DiscrepancyApproval
	attachments map[int64]*ApprovalAttachment
	nextID      int64

	appendLogErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		samples:     make(map[int64]*Sample),
		approvals:   make(map[int64]*DiscrepancyApproval),
		attachments: make(map[int64]*ApprovalAttachment),
		nextID:      1,
	}
}

func (m *mockRepo) Create(ctx context.Context, s *Sample) error {
	s.ID = m.nextID
	m.nextID++
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	for _, s := range m.samples {
		if s.Barcode == barcode {
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(ctx context.Context, s *Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return fmt.Errorf("not found")
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockRepo) List(ctx context.Context, f ListFilter) ([]*Sample, int, error) {
	var out []*Sample
	for _, s := range m.samples {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepo) BarcodeExists(ctx context.Context, barcode string) (bool, error) {
	for _, s := range m.samples {
		if s.Barcode == barcode {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListByStatuses(ctx context.Context, statuses []string, limit, offset int) ([]*Sample, int, error) {
	want := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*Sample
	for _, s := range m.samples {
		if want[s.Status] {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPlate(ctx context.Context, plateRefID int64) ([]*Sample, error) {
	var out []*Sample
	for _, s := range m.samples {
		if s.ExtractionPlateRefID != nil && *s.ExtractionPlateRefID == plateRefID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListReprocessQueue(ctx context.Context, limit, offset int) ([]*Sample, int, error) {
	var out []*Sample
	for _, s := range m.samples {
		switch s.Status {
		case StatusFailed, StatusCancelled, StatusDeleted, StatusDelivered:
			continue
		}
		if s.ReprocessCount > 0 {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) AppendLog(ctx context.Context, log *Log) error {
	if m.appendLogErr != nil {
		return m.appendLogErr
	}
	log.ID = m.nextID
	m.nextID++
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockRepo) GetLogs(ctx context.Context, sampleID int64) ([]*Log, error) {
	var out []*Log
	for _, l := range m.logs {
		if l.SampleID == sampleID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateApproval(ctx context.Context, a *DiscrepancyApproval) error {
	a.ID = m.nextID
	m.nextID++
	cp := *a
	m.approvals[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetApproval(ctx context.Context, id int64) (*DiscrepancyApproval, error) {
	a, ok := m.approvals[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListApprovals(ctx context.Context, sampleID int64) ([]*DiscrepancyApproval, error) {
	var out []*DiscrepancyApproval
	for _, a := range m.approvals {
		if a.SampleID == sampleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateApproval(ctx context.Context, a *DiscrepancyApproval) error {
	existing, ok := m.approvals[a.ID]
	if !ok {
		return fmt.Errorf("not found")
	}
	if existing.Approved != nil {
		return fmt.Errorf("no rows updated")
	}
	cp := *a
	m.approvals[a.ID] = &cp
	return nil
}

func (m *mockRepo) CreateApprovalAttachment(ctx context.Context, a *ApprovalAttachment) error {
	a.ID = m.nextID
	m.nextID++
	cp := *a
	m.attachments[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetApprovalAttachment(ctx context.Context, id int64) (*ApprovalAttachment, error) {
	a, ok := m.attachments[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListApprovalAttachments(ctx context.Context, approvalID int64) ([]*ApprovalAttachment, error) {
	var out []*ApprovalAttachment
	for _, a := range m.attachments {
		if a.ApprovalID == approvalID {
			out = append(out, a)
		}
	}
	return out, nil
}

func copyMap[K comparable, V any](src map[K]*V) map[K]*V {
	out := make(map[K]*V, len(src))
	for k, v := range src {
		cp := *v
		out[k] = &cp
	}
	return out
}

// InTx mirrors a database rollback: any error restores all stores to their
// state at entry.
func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	samples := copyMap(m.samples)
	approvals := copyMap(m.approvals)
	attachments := copyMap(m.attachments)
	logs := append([]*Log(nil), m.logs...)
	nextID := m.nextID

	if err := fn(ctx); err != nil {
		m.samples = samples
		m.approvals = approvals
		m.attachments = attachments
		m.logs = logs
		m.nextID = nextID
		return err
	}
	return nil
}

type mockAuditRepo struct {
	entries []*audit.DeletionLog
}

func (m *mockAuditRepo) Append(ctx context.Context, e *audit.DeletionLog) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, entityType string, limit, offset int) ([]*audit.DeletionLog, int, error) {
	return m.entries, len(m.entries), nil
}

type mockSignatures struct{}

func (mockSignatures) VerifyPassword(ctx context.Context, userID int64, password string) error {
	if password != "correct-horse" {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

func newTestService() (*Service, *mockRepo, *mockAuditRepo) {
	repo := newMockRepo()
	auditRepo := &mockAuditRepo{}
	svc := NewService(repo, audit.NewService(auditRepo), blobstore.NewMemoryStore(), mockSignatures{}, nil)
	return svc, repo, auditRepo
}

func pmActor() Actor {
	id := int64(7)
	return Actor{ID: &id, Username: "pm1", Role: auth.RolePM}
}

func techActor() Actor {
	id := int64(3)
	return Actor{ID: &id, Username: "tech1", Role: auth.RoleLabTech}
}

func seed(t *testing.T, repo *mockRepo, status string) *Sample {
	t.Helper()
	smp := &Sample{Barcode: fmt.Sprintf("test-%d", repo.nextID), ProjectID: 1, Status: status}
	if err := repo.Create(context.Background(), smp); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return smp
}

func TestRegister(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	smp := &Sample{ProjectID: 1}
	if err := svc.Register(ctx, smp, pmActor()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(smp.Barcode) != 6 {
		t.Errorf("barcode = %q, want 6 digits", smp.Barcode)
	}
	for _, r := range smp.Barcode {
		if r < '0' || r > '9' {
			t.Errorf("barcode %q contains non-digit", smp.Barcode)
		}
	}
	if smp.Status != StatusRegistered {
		t.Errorf("status = %q, want %q", smp.Status, StatusRegistered)
	}
	logs, _ := repo.GetLogs(ctx, smp.ID)
	if len(logs) != 1 || logs[0].LogType != "creation" {
		t.Errorf("expected one creation log, got %+v", logs)
	}
}

func TestRegister_RequiresProject(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.Register(context.Background(), &Sample{}, pmActor()); err == nil {
		t.Fatal("expected error without project_id")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusRegistered, StatusReceived, true},
		{StatusRegistered, StatusAccessioned, false},
		{StatusReceived, StatusAccessioned, true},
		{StatusAccessioned, StatusExtractionQueue, true},
		{StatusAccessioned, StatusDNAQuantQueue, true},
		{StatusExtractionQueue, StatusInExtraction, true},
		{StatusInExtraction, StatusFailed, true},
		{StatusInExtraction, StatusCancelled, true},
		{StatusDelivered, StatusFailed, false},
		{StatusFailed, StatusRegistered, false},
		{StatusInSequencing, StatusSequenced, true},
		{StatusSequenced, StatusInExtraction, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestUpdate_StatusTransition(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusRegistered)

	in := *smp
	in.Status = StatusReceived
	got, err := svc.Update(ctx, smp.ID, &in, techActor())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != StatusReceived {
		t.Errorf("status = %q, want %q", got.Status, StatusReceived)
	}
	logs, _ := repo.GetLogs(ctx, smp.ID)
	if len(logs) != 1 || logs[0].LogType != "status_change" {
		t.Errorf("expected one status_change log, got %+v", logs)
	}

	in = *got
	in.Status = StatusInSequencing
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err == nil {
		t.Fatal("expected illegal transition to be rejected")
	}
}

func TestUpdate_StatusAndLogCommitTogether(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	repo.appendLogErr = fmt.Errorf("db down")
	in := *smp
	in.Status = StatusAccessioned
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err == nil {
		t.Fatal("expected the failed log write to fail the update")
	}

	got, _ := repo.GetByID(ctx, smp.ID)
	if got.Status != StatusReceived {
		t.Errorf("status = %q after rollback, want %q", got.Status, StatusReceived)
	}
	logs, _ := repo.GetLogs(ctx, smp.ID)
	if len(logs) != 0 {
		t.Errorf("got %d logs after rollback, want 0", len(logs))
	}

	repo.appendLogErr = nil
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err != nil {
		t.Fatalf("Update after recovery: %v", err)
	}
	got, _ = repo.GetByID(ctx, smp.ID)
	if got.Status != StatusAccessioned {
		t.Errorf("status = %q, want %q", got.Status, StatusAccessioned)
	}
}

func TestRegister_RollsBackOnLogFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.appendLogErr = fmt.Errorf("db down")

	if err := svc.Register(context.Background(), &Sample{ProjectID: 1}, pmActor()); err == nil {
		t.Fatal("expected the failed log write to fail registration")
	}
	if len(repo.samples) != 0 {
		t.Errorf("got %d stored samples after rollback, want 0", len(repo.samples))
	}
}

func TestUpdate_ProcessingFields(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusExtracted)

	kit := "QIAamp PowerFecal Pro"
	lot := "L240815"
	conc := 42.5
	prepKit := "Nextera XT"
	runID := "RUN-2025-031"
	depth := 31.2

	in := *smp
	in.ExtractionKit = &kit
	in.ExtractionLot = &lot
	in.DNAConcentrationNgUl = &conc
	in.LibraryPrepKit = &prepKit
	in.SequencingRunID = &runID
	in.AchievedDepth = &depth
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := repo.GetByID(ctx, smp.ID)
	if got.ExtractionKit == nil || *got.ExtractionKit != kit {
		t.Errorf("extraction_kit = %v, want %q", got.ExtractionKit, kit)
	}
	if got.DNAConcentrationNgUl == nil || *got.DNAConcentrationNgUl != conc {
		t.Errorf("dna_concentration_ng_ul = %v, want %v", got.DNAConcentrationNgUl, conc)
	}
	if got.SequencingRunID == nil || *got.SequencingRunID != runID {
		t.Errorf("sequencing_run_id = %v, want %q", got.SequencingRunID, runID)
	}
	if got.AchievedDepth == nil || *got.AchievedDepth != depth {
		t.Errorf("achieved_depth = %v, want %v", got.AchievedDepth, depth)
	}
}

func TestDiscrepancyBlocksForwardTransitions(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusExtractionQueue)
	smp.HasDiscrepancy = true
	repo.Update(ctx, smp)

	in := *smp
	in.Status = StatusInExtraction
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err == nil {
		t.Fatal("expected blocked sample to be rejected")
	}

	in.Status = StatusFailed
	if _, err := svc.Update(ctx, smp.ID, &in, techActor()); err != nil {
		t.Fatalf("failed should bypass the hold: %v", err)
	}
}

func TestAccessionSamples(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	ok := seed(t, repo, StatusReceived)
	blocked := seed(t, repo, StatusReceived)
	blocked.HasDiscrepancy = true
	repo.Update(ctx, blocked)
	wrong := seed(t, repo, StatusRegistered)

	outcomes := svc.AccessionSamples(ctx, []int64{ok.ID, blocked.ID, wrong.ID, 999}, "intact on arrival", pmActor())
	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(outcomes))
	}
	if !outcomes[0].Success || outcomes[0].Status != StatusAccessioned {
		t.Errorf("first outcome = %+v, want accessioned", outcomes[0])
	}
	if outcomes[1].Success || !strings.Contains(outcomes[1].Error, "discrepancy") {
		t.Errorf("blocked outcome = %+v", outcomes[1])
	}
	if outcomes[2].Success {
		t.Errorf("registered sample should not accession: %+v", outcomes[2])
	}
	if outcomes[3].Success {
		t.Errorf("missing sample should fail: %+v", outcomes[3])
	}

	got, _ := repo.GetByID(ctx, ok.ID)
	if got.AccessionedDate == nil || got.AccessioningNotes == nil {
		t.Error("accessioned date and notes not stamped")
	}
}

func TestRouteSamples(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	stoolName := "Stool"
	dnaName := "DNA"

	stool := seed(t, repo, StatusAccessioned)
	stool.SampleTypeName = &stoolName
	repo.Update(ctx, stool)

	dna := seed(t, repo, StatusAccessioned)
	dna.SampleTypeName = &dnaName
	repo.Update(ctx, dna)

	outcomes := svc.RouteSamples(ctx, []int64{stool.ID, dna.ID}, pmActor())
	if outcomes[0].Status != StatusExtractionQueue {
		t.Errorf("stool routed to %q, want %q", outcomes[0].Status, StatusExtractionQueue)
	}
	if outcomes[1].Status != StatusDNAQuantQueue {
		t.Errorf("dna routed to %q, want %q", outcomes[1].Status, StatusDNAQuantQueue)
	}
}

func TestBulkApply(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	a := seed(t, repo, StatusExtractionQueue)
	b := seed(t, repo, StatusExtractionQueue)

	outcomes := svc.BulkApply(ctx, BulkUpdate{
		SampleIDs:  []int64{a.ID, b.ID},
		UpdateData: map[string]interface{}{"queue_priority": float64(5), "queue_notes": "rush order"},
	}, pmActor())
	for _, o := range outcomes {
		if !o.Success {
			t.Errorf("outcome = %+v, want success", o)
		}
	}
	got, _ := repo.GetByID(ctx, a.ID)
	if got.QueuePriority != 5 || got.QueueNotes == nil {
		t.Errorf("bulk update not applied: %+v", got)
	}

	outcomes = svc.BulkApply(ctx, BulkUpdate{
		SampleIDs:  []int64{a.ID},
		UpdateData: map[string]interface{}{"barcode": "nope"},
	}, pmActor())
	if outcomes[0].Success || !strings.Contains(outcomes[0].Error, "unsupported field") {
		t.Errorf("outcome = %+v, want unsupported field error", outcomes[0])
	}

	outcomes = svc.BulkApply(ctx, BulkUpdate{
		SampleIDs:  []int64{a.ID},
		UpdateData: map[string]interface{}{"status": StatusInExtraction},
	}, pmActor())
	if !outcomes[0].Success || outcomes[0].Status != StatusInExtraction {
		t.Errorf("outcome = %+v, want in_extraction", outcomes[0])
	}
}

func TestFail_CreatesReprocessTwin(t *testing.T) {
	tests := []struct {
		stage  string
		from   string
		resume string
	}{
		{"extraction", StatusInExtraction, StatusExtractionQueue},
		{"library_prep", StatusInLibraryPrep, StatusDNAQuantQueue},
		{"sequencing", StatusInSequencing, StatusLibraryPrepped},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			svc, repo, _ := newTestService()
			ctx := context.Background()
			smp := seed(t, repo, tt.from)

			failed, twin, err := svc.Fail(ctx, smp.ID, FailRequest{
				FailedStage:     tt.stage,
				FailureReason:   "low yield",
				CreateReprocess: true,
			}, techActor())
			if err != nil {
				t.Fatalf("Fail: %v", err)
			}
			if failed.Status != StatusFailed || failed.FailedStage == nil {
				t.Errorf("failed sample = %+v", failed)
			}
			if twin == nil {
				t.Fatal("expected a reprocess twin")
			}
			if want := smp.Barcode + "-R1"; twin.Barcode != want {
				t.Errorf("twin barcode = %q, want %q", twin.Barcode, want)
			}
			if twin.ReprocessCount != 1 {
				t.Errorf("twin reprocess_count = %d, want 1", twin.ReprocessCount)
			}
			if twin.Status != tt.resume {
				t.Errorf("twin status = %q, want %q", twin.Status, tt.resume)
			}
			if twin.ParentSampleID == nil || *twin.ParentSampleID != smp.ID {
				t.Errorf("twin parent = %v, want %d", twin.ParentSampleID, smp.ID)
			}
		})
	}
}

func TestFail_Validation(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusInExtraction)

	if _, _, err := svc.Fail(ctx, smp.ID, FailRequest{FailedStage: "mixing", FailureReason: "x"}, techActor()); err == nil {
		t.Error("expected unknown stage to be rejected")
	}
	if _, _, err := svc.Fail(ctx, smp.ID, FailRequest{FailedStage: "extraction"}, techActor()); err == nil {
		t.Error("expected missing reason to be rejected")
	}
}

func TestQueue(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seed(t, repo, StatusReceived)
	seed(t, repo, StatusAccessioning)
	seed(t, repo, StatusExtractionQueue)
	twin := seed(t, repo, StatusExtractionQueue)
	twin.ReprocessCount = 1
	repo.Update(ctx, twin)

	items, total, err := svc.Queue(ctx, "accessioning_queue", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("accessioning queue total = %d, want 2", total)
	}

	_, total, err = svc.Queue(ctx, "extraction", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if total != 2 {
		t.Errorf("extraction queue total = %d, want 2", total)
	}

	_, total, err = svc.Queue(ctx, "reprocess_queue", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if total != 1 {
		t.Errorf("reprocess queue total = %d, want 1", total)
	}

	if _, _, err := svc.Queue(ctx, "mystery", 50, 0); err == nil {
		t.Error("expected unknown queue to be rejected")
	}
}

func TestQueueStatusesAreDisjoint(t *testing.T) {
	owner := make(map[string]string)
	for queue, statuses := range queueStatuses {
		for _, st := range statuses {
			if other, ok := owner[st]; ok {
				t.Errorf("status %q belongs to both %q and %q", st, other, queue)
			}
			owner[st] = queue
		}
	}
}

func TestQueue_LibraryPrepAliasesDNAQuant(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seed(t, repo, StatusDNAQuantQueue)
	seed(t, repo, StatusExtracted)

	if got := CanonicalQueue("library_prep"); got != "dna_quant" {
		t.Errorf("CanonicalQueue(library_prep) = %q, want dna_quant", got)
	}

	_, asLibraryPrep, err := svc.Queue(ctx, "library_prep", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	_, asDNAQuant, err := svc.Queue(ctx, "dna_quant", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if asLibraryPrep != 2 || asDNAQuant != 2 {
		t.Errorf("queue totals = %d/%d, want 2/2 under both names", asLibraryPrep, asDNAQuant)
	}
}

func TestRaiseDiscrepancy(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	if _, err := svc.RaiseDiscrepancy(ctx, smp.ID, "bad_vibes", strings.Repeat("x", 30), pmActor()); err == nil {
		t.Error("expected unknown type to be rejected")
	}
	if _, err := svc.RaiseDiscrepancy(ctx, smp.ID, "label_mismatch", "too short", pmActor()); err == nil {
		t.Error("expected short details to be rejected")
	}

	a, err := svc.RaiseDiscrepancy(ctx, smp.ID, "label_mismatch",
		"tube label reads 1234 but manifest lists 4321", pmActor())
	if err != nil {
		t.Fatalf("RaiseDiscrepancy: %v", err)
	}
	if a.Approved != nil {
		t.Error("new approval should be pending")
	}
	got, _ := repo.GetByID(ctx, smp.ID)
	if !got.Blocked() {
		t.Error("sample should be on hold after discrepancy")
	}
}

func TestDecideDiscrepancy(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	a, err := svc.RaiseDiscrepancy(ctx, smp.ID, "quantity_shortfall",
		"received 2 mL against a manifest quantity of 10 mL", pmActor())
	if err != nil {
		t.Fatalf("RaiseDiscrepancy: %v", err)
	}

	req := DecisionRequest{
		Approved:         true,
		ApprovalReason:   "client confirmed the reduced volume is sufficient",
		Password:         "correct-horse",
		SignatureMeaning: "I approve processing this sample as received",
	}

	if _, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, req, techActor()); err == nil {
		t.Error("expected non-PM role to be rejected")
	}

	short := req
	short.ApprovalReason = "fine"
	if _, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, short, pmActor()); err == nil {
		t.Error("expected short reason to be rejected")
	}

	wrongPw := req
	wrongPw.Password = "guess"
	if _, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, wrongPw, pmActor()); err == nil {
		t.Error("expected wrong password to be rejected")
	}

	noMeaning := req
	noMeaning.SignatureMeaning = ""
	if _, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, noMeaning, pmActor()); err == nil {
		t.Error("expected missing signature meaning to be rejected")
	}

	decided, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, req, pmActor())
	if err != nil {
		t.Fatalf("DecideDiscrepancy: %v", err)
	}
	if decided.Approved == nil || !*decided.Approved || decided.DecidedAt == nil {
		t.Errorf("decision not recorded: %+v", decided)
	}

	got, _ := repo.GetByID(ctx, smp.ID)
	if got.Blocked() || !got.DiscrepancyResolved {
		t.Error("approval should release the hold")
	}

	if _, err := svc.DecideDiscrepancy(ctx, smp.ID, a.ID, req, pmActor()); err == nil {
		t.Error("decisions must be terminal")
	}
}

func TestDecideDiscrepancy_RejectKeepsHold(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	a, err := svc.RaiseDiscrepancy(ctx, smp.ID, "damaged_container",
		"primary tube arrived cracked with visible leakage", pmActor())
	if err != nil {
		t.Fatalf("RaiseDiscrepancy: %v", err)
	}

	_, err = svc.DecideDiscrepancy(ctx, smp.ID, a.ID, DecisionRequest{
		Approved:         false,
		ApprovalReason:   "sample integrity cannot be guaranteed, request recollection",
		Password:         "correct-horse",
		SignatureMeaning: "I reject this sample for processing",
	}, pmActor())
	if err != nil {
		t.Fatalf("DecideDiscrepancy: %v", err)
	}

	got, _ := repo.GetByID(ctx, smp.ID)
	if !got.Blocked() {
		t.Error("rejection must keep the sample on hold")
	}
}

func TestSoftDelete(t *testing.T) {
	svc, repo, auditRepo := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	if err := svc.SoftDelete(ctx, smp.ID, "", pmActor()); err == nil {
		t.Error("expected reason to be required for non-admin")
	}

	if err := svc.SoftDelete(ctx, smp.ID, "registered in error", pmActor()); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	got, _ := repo.GetByID(ctx, smp.ID)
	if got.Status != StatusDeleted {
		t.Errorf("status = %q, want deleted", got.Status)
	}
	if len(auditRepo.entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(auditRepo.entries))
	}
	e := auditRepo.entries[0]
	if e.EntityType != "sample" || e.EntityIdentifier != smp.Barcode || e.PreviousStatus != StatusReceived {
		t.Errorf("audit entry = %+v", e)
	}

	if err := svc.SoftDelete(ctx, smp.ID, "again", pmActor()); err == nil {
		t.Error("expected double delete to be rejected")
	}
}

func TestSoftDelete_AdminDefaultReason(t *testing.T) {
	svc, repo, auditRepo := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	id := int64(1)
	admin := Actor{ID: &id, Username: "root", Role: auth.RoleSuperAdmin}
	if err := svc.SoftDelete(ctx, smp.ID, "", admin); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if auditRepo.entries[0].DeletionReason == "" {
		t.Error("expected a default deletion reason")
	}
}

func TestDiscrepancyAttachments(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	smp := seed(t, repo, StatusReceived)

	a, err := svc.RaiseDiscrepancy(ctx, smp.ID, "missing_paperwork",
		"chain of custody form absent from the shipment", pmActor())
	if err != nil {
		t.Fatalf("RaiseDiscrepancy: %v", err)
	}

	content := "photo-bytes"
	att, err := svc.UploadDiscrepancyAttachment(ctx, a.ID, "evidence.jpg", "image/jpeg",
		strings.NewReader(content), pmActor())
	if err != nil {
		t.Fatalf("UploadDiscrepancyAttachment: %v", err)
	}
	if att.FileSize != int64(len(content)) {
		t.Errorf("file size = %d, want %d", att.FileSize, len(content))
	}

	got, rc, err := svc.OpenDiscrepancyAttachment(ctx, att.ID)
	if err != nil {
		t.Fatalf("OpenDiscrepancyAttachment: %v", err)
	}
	defer rc.Close()
	if got.OriginalFilename != "evidence.jpg" {
		t.Errorf("filename = %q", got.OriginalFilename)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Errorf("content = %q, want %q", data, content)
	}

	items, err := svc.ListDiscrepancyAttachments(ctx, a.ID)
	if err != nil || len(items) != 1 {
		t.Errorf("list = %v items, err %v", len(items), err)
	}

	if _, err := svc.UploadDiscrepancyAttachment(ctx, 999, "x.txt", "text/plain",
		strings.NewReader("x"), pmActor()); err == nil {
		t.Error("expected unknown approval to be rejected")
	}
}
