package sample

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/domain/sampletype"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/blobstore"
	"github.com/lims/lims/internal/platform/metrics"
)

const barcodeLength = 6

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID       *int64
	Username string
	Role     string
}

// SignatureVerifier re-checks a user's password for electronic signatures.
// Satisfied by the identity service.
type SignatureVerifier interface {
	VerifyPassword(ctx context.Context, userID int64, password string) error
}

type Service struct {
	repo       Repository
	audit      *audit.Service
	files      blobstore.Store
	signatures SignatureVerifier
	metrics    *metrics.Collector
}

func NewService(repo Repository, auditSvc *audit.Service, files blobstore.Store, signatures SignatureVerifier, collector *metrics.Collector) *Service {
	return &Service{
		repo:       repo,
		audit:      auditSvc,
		files:      files,
		signatures: signatures,
		metrics:    collector,
	}
}

// generateBarcode draws random digit strings until one is free.
func (s *Service) generateBarcode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		var b strings.Builder
		for i := 0; i < barcodeLength; i++ {
			fmt.Fprintf(&b, "%d", rand.Intn(10))
		}
		exists, err := s.repo.BarcodeExists(ctx, b.String())
		if err != nil {
			return "", err
		}
		if !exists {
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique barcode")
}

// Register creates a sample in registered status with a fresh barcode.
func (s *Service) Register(ctx context.Context, in *Sample, actor Actor) error {
	if in.ProjectID == 0 {
		return fmt.Errorf("project_id is required")
	}
	barcode, err := s.generateBarcode(ctx)
	if err != nil {
		return err
	}
	in.Barcode = barcode
	in.Status = StatusRegistered
	in.ReprocessCount = 0
	in.ParentSampleID = nil

	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, in); err != nil {
			return err
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    in.ID,
			Comment:     fmt.Sprintf("Sample %s registered", in.Barcode),
			LogType:     "creation",
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SamplesRegisteredTotal.Inc()
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Sample, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Sample, int, error) {
	return s.repo.List(ctx, f)
}

// transition moves a sample to a new status, enforcing the state machine and
// the discrepancy hold, and appends exactly one status_change log.
func (s *Service) transition(ctx context.Context, smp *Sample, to string, actor Actor) error {
	if !CanTransition(smp.Status, to) {
		return fmt.Errorf("cannot move sample from %s to %s", smp.Status, to)
	}
	if to != StatusFailed && to != StatusCancelled && smp.Blocked() {
		return fmt.Errorf("sample %s has an unresolved discrepancy", smp.Barcode)
	}

	old := smp.Status
	smp.Status = to
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, smp); err != nil {
			return err
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    smp.ID,
			Comment:     fmt.Sprintf("Status changed from %s to %s", old, to),
			LogType:     "status_change",
			OldValue:    &old,
			NewValue:    &to,
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		smp.Status = old
		return err
	}
	if s.metrics != nil {
		s.metrics.SampleTransitionsTotal.WithLabelValues(to).Inc()
	}
	return nil
}

// Update applies field edits from a PUT. A status value that differs from the
// current one is run through the state machine.
func (s *Service) Update(ctx context.Context, id int64, in *Sample, actor Actor) (*Sample, error) {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sample not found")
	}
	if smp.Status == StatusDeleted {
		return nil, fmt.Errorf("sample is deleted")
	}

	smp.ClientSampleID = in.ClientSampleID
	smp.SampleTypeID = in.SampleTypeID
	smp.SampleTypeOther = in.SampleTypeOther
	smp.StorageUnit = in.StorageUnit
	smp.StorageShelf = in.StorageShelf
	smp.StorageBox = in.StorageBox
	smp.StoragePosition = in.StoragePosition
	smp.StorageLocationID = in.StorageLocationID
	smp.TargetDepth = in.TargetDepth
	smp.WellLocation = in.WellLocation
	smp.DueDate = in.DueDate
	smp.HasFlag = in.HasFlag
	smp.FlagAbbreviation = in.FlagAbbreviation
	smp.FlagNotes = in.FlagNotes
	smp.QueuePriority = in.QueuePriority
	smp.QueueNotes = in.QueueNotes
	smp.BatchID = in.BatchID
	smp.ExtractionKit = in.ExtractionKit
	smp.ExtractionLot = in.ExtractionLot
	smp.DNAConcentrationNgUl = in.DNAConcentrationNgUl
	smp.LibraryPrepKit = in.LibraryPrepKit
	smp.SequencingRunID = in.SequencingRunID
	smp.AchievedDepth = in.AchievedDepth

	if in.Status != "" && in.Status != smp.Status {
		if err := s.transition(ctx, smp, in.Status, actor); err != nil {
			return nil, err
		}
		return smp, nil
	}

	if err := s.repo.Update(ctx, smp); err != nil {
		return nil, err
	}
	return smp, nil
}

// AccessionSamples marks received samples accessioned. Samples with an
// unresolved discrepancy are rejected individually.
func (s *Service) AccessionSamples(ctx context.Context, ids []int64, notes string, actor Actor) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(ids))
	for _, id := range ids {
		outcomes = append(outcomes, s.accessionOne(ctx, id, notes, actor))
	}
	return outcomes
}

func (s *Service) accessionOne(ctx context.Context, id int64, notes string, actor Actor) BulkOutcome {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return BulkOutcome{SampleID: id, Error: "sample not found"}
	}
	if smp.Blocked() {
		return BulkOutcome{SampleID: id, Error: fmt.Sprintf("sample %s has an unresolved discrepancy", smp.Barcode)}
	}
	if smp.Status != StatusReceived && smp.Status != StatusAccessioning {
		return BulkOutcome{SampleID: id, Error: fmt.Sprintf("sample %s is not awaiting accessioning", smp.Barcode)}
	}

	now := time.Now()
	smp.AccessionedDate = &now
	smp.AccessionedByID = actor.ID
	if notes != "" {
		smp.AccessioningNotes = &notes
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.transition(ctx, smp, StatusAccessioned, actor); err != nil {
			return err
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    smp.ID,
			Comment:     fmt.Sprintf("Sample %s accessioned", smp.Barcode),
			LogType:     "accession",
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		return BulkOutcome{SampleID: id, Error: err.Error()}
	}
	return BulkOutcome{SampleID: id, Success: true, Status: smp.Status}
}

// RouteSamples sends accessioned samples to the correct queue: already-purified
// DNA types skip extraction and go straight to quantification.
func (s *Service) RouteSamples(ctx context.Context, ids []int64, actor Actor) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(ids))
	for _, id := range ids {
		outcomes = append(outcomes, s.routeOne(ctx, id, actor))
	}
	return outcomes
}

func (s *Service) routeOne(ctx context.Context, id int64, actor Actor) BulkOutcome {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return BulkOutcome{SampleID: id, Error: "sample not found"}
	}
	if smp.Status != StatusAccessioned {
		return BulkOutcome{SampleID: id, Error: fmt.Sprintf("sample %s is not accessioned", smp.Barcode)}
	}

	target := StatusExtractionQueue
	if smp.SampleTypeName != nil && sampletype.IsAlreadyDNA(*smp.SampleTypeName) {
		target = StatusDNAQuantQueue
	}
	if err := s.transition(ctx, smp, target, actor); err != nil {
		return BulkOutcome{SampleID: id, Error: err.Error()}
	}
	return BulkOutcome{SampleID: id, Success: true, Status: target}
}

// BulkApply applies the same update_data to each sample. Each sample succeeds
// or fails on its own; no cross-sample rollback.
func (s *Service) BulkApply(ctx context.Context, req BulkUpdate, actor Actor) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(req.SampleIDs))
	for _, id := range req.SampleIDs {
		outcomes = append(outcomes, s.bulkOne(ctx, id, req.UpdateData, actor))
	}
	return outcomes
}

func (s *Service) bulkOne(ctx context.Context, id int64, data map[string]interface{}, actor Actor) BulkOutcome {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return BulkOutcome{SampleID: id, Error: "sample not found"}
	}
	if smp.Status == StatusDeleted {
		return BulkOutcome{SampleID: id, Error: "sample is deleted"}
	}

	newStatus := ""
	for key, raw := range data {
		switch key {
		case "status":
			v, ok := raw.(string)
			if !ok {
				return BulkOutcome{SampleID: id, Error: "status must be a string"}
			}
			newStatus = v
		case "queue_priority":
			v, ok := raw.(float64)
			if !ok {
				return BulkOutcome{SampleID: id, Error: "queue_priority must be a number"}
			}
			smp.QueuePriority = int(v)
		case "queue_notes":
			v, _ := raw.(string)
			smp.QueueNotes = &v
		case "batch_id":
			v, _ := raw.(string)
			smp.BatchID = &v
		case "has_flag":
			v, _ := raw.(bool)
			smp.HasFlag = v
		case "flag_abbreviation":
			v, _ := raw.(string)
			smp.FlagAbbreviation = &v
		case "flag_notes":
			v, _ := raw.(string)
			smp.FlagNotes = &v
		default:
			return BulkOutcome{SampleID: id, Error: fmt.Sprintf("unsupported field %q", key)}
		}
	}

	if newStatus != "" && newStatus != smp.Status {
		if err := s.transition(ctx, smp, newStatus, actor); err != nil {
			return BulkOutcome{SampleID: id, Error: err.Error()}
		}
	} else if err := s.repo.Update(ctx, smp); err != nil {
		return BulkOutcome{SampleID: id, Error: err.Error()}
	}
	return BulkOutcome{SampleID: id, Success: true, Status: smp.Status}
}

type FailRequest struct {
	FailedStage     string `json:"failed_stage"`
	FailureReason   string `json:"failure_reason"`
	CreateReprocess bool   `json:"create_reprocess"`
	ReprocessType   string `json:"reprocess_type"`
}

// Fail marks a sample failed and optionally spawns a reprocessed twin resuming
// at the stage-appropriate queue.
func (s *Service) Fail(ctx context.Context, id int64, req FailRequest, actor Actor) (*Sample, *Sample, error) {
	resume, ok := reprocessResumeStatus[req.FailedStage]
	if !ok {
		return nil, nil, fmt.Errorf("unknown failed stage %q", req.FailedStage)
	}
	if req.FailureReason == "" {
		return nil, nil, fmt.Errorf("failure reason is required")
	}

	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("sample not found")
	}

	var twin *Sample
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		smp.FailedStage = &req.FailedStage
		smp.FailureReason = &req.FailureReason
		if err := s.transition(ctx, smp, StatusFailed, actor); err != nil {
			return err
		}

		if !req.CreateReprocess {
			return nil
		}

		n := smp.ReprocessCount + 1
		twin = &Sample{
			Barcode:        fmt.Sprintf("%s-R%d", smp.Barcode, n),
			ClientSampleID: smp.ClientSampleID,
			ProjectID:      smp.ProjectID,
			SampleTypeID:   smp.SampleTypeID,
			Status:         resume,
			ParentSampleID: &smp.ID,
			ReprocessCount: n,
			QueuePriority:  smp.QueuePriority,
			DueDate:        smp.DueDate,
		}
		if req.ReprocessType != "" {
			twin.ReprocessType = &req.ReprocessType
		}
		if err := s.repo.Create(ctx, twin); err != nil {
			return err
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    twin.ID,
			Comment:     fmt.Sprintf("Reprocess of %s after %s failure", smp.Barcode, req.FailedStage),
			LogType:     "creation",
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return smp, twin, nil
}

// Queue returns the samples in a named queue, highest priority first, then
// oldest first.
func (s *Service) Queue(ctx context.Context, name string, limit, offset int) ([]*Sample, int, error) {
	key := CanonicalQueue(strings.TrimSuffix(name, "_queue"))
	if key == "reprocess" {
		return s.repo.ListReprocessQueue(ctx, limit, offset)
	}
	statuses, ok := queueStatuses[key]
	if !ok {
		return nil, 0, fmt.Errorf("unknown queue %q", name)
	}
	return s.repo.ListByStatuses(ctx, statuses, limit, offset)
}

func (s *Service) AddLog(ctx context.Context, sampleID int64, comment string, actor Actor) (*Log, error) {
	if comment == "" {
		return nil, fmt.Errorf("comment is required")
	}
	if _, err := s.repo.GetByID(ctx, sampleID); err != nil {
		return nil, fmt.Errorf("sample not found")
	}
	l := &Log{
		SampleID:    sampleID,
		Comment:     comment,
		LogType:     "comment",
		CreatedByID: actor.ID,
	}
	if err := s.repo.AppendLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLogs(ctx context.Context, sampleID int64) ([]*Log, error) {
	return s.repo.GetLogs(ctx, sampleID)
}

// SoftDelete marks the sample deleted and writes the audit trail.
func (s *Service) SoftDelete(ctx context.Context, id int64, reason string, actor Actor) error {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("sample not found")
	}
	if smp.Status == StatusDeleted {
		return fmt.Errorf("sample is already deleted")
	}
	if reason == "" {
		if actor.Role != auth.RoleSuperAdmin {
			return fmt.Errorf("a deletion reason is required")
		}
		reason = "deleted by administrator"
	}

	previousStatus := smp.Status
	smp.Status = StatusDeleted

	var deletedByID int64
	if actor.ID != nil {
		deletedByID = *actor.ID
	}
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, smp); err != nil {
			return err
		}
		return s.audit.Record(ctx, &audit.DeletionLog{
			EntityType:       "sample",
			EntityID:         smp.ID,
			EntityIdentifier: smp.Barcode,
			DeletionReason:   reason,
			PreviousStatus:   previousStatus,
			DeletedBy:        actor.Username,
			DeletedByID:      deletedByID,
		})
	})
}
