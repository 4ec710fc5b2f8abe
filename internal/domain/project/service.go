package project

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/blobstore"
	"github.com/lims/lims/internal/platform/metrics"
)

const maxAttachmentBytes = 10 << 20

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID       *int64
	Username string
	Role     string
}

type Service struct {
	repo    Repository
	audit   *audit.Service
	files   blobstore.Store
	metrics *metrics.Collector
}

func NewService(repo Repository, auditSvc *audit.Service, files blobstore.Store, collector *metrics.Collector) *Service {
	return &Service{repo: repo, audit: auditSvc, files: files, metrics: collector}
}

// NextID previews the next standard sequential project id.
func (s *Service) NextID(ctx context.Context) (string, error) {
	max, err := s.repo.MaxStandardNumber(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CMBP%05d", max+1), nil
}

func (s *Service) validate(p *Project) error {
	if !projectTypes[p.ProjectType] {
		return fmt.Errorf("unknown project type %q", p.ProjectType)
	}
	if _, ok := tatOffsets[p.TAT]; !ok {
		return fmt.Errorf("unknown TAT %q", p.TAT)
	}
	if p.ExpectedSampleCount <= 0 {
		return fmt.Errorf("expected sample count must be positive")
	}
	if p.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Project, actor Actor) error {
	if err := s.validate(p); err != nil {
		return err
	}

	if p.ProjectID == "" {
		id, err := s.NextID(ctx)
		if err != nil {
			return err
		}
		p.ProjectID = id
	} else if existing, _ := s.repo.GetByProjectID(ctx, p.ProjectID); existing != nil {
		return fmt.Errorf("project ID %s already exists", p.ProjectID)
	}

	p.Status = StatusPending
	p.DueDate, _ = DueDate(p.StartDate, p.TAT)
	p.CreatedByID = actor.ID

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ProjectsCreatedTotal.Inc()
	}
	return s.repo.AppendLog(ctx, &Log{
		ProjectID:   p.ID,
		Comment:     fmt.Sprintf("Project %s created", p.ProjectID),
		LogType:     "creation",
		CreatedByID: actor.ID,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Project, int, error) {
	return s.repo.List(ctx, f)
}

// Update applies field edits and an optional status transition. The project_id
// itself is immutable; due_date is recomputed whenever start date or TAT move.
func (s *Service) Update(ctx context.Context, id int64, in *Project, actor Actor) (*Project, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project not found")
	}
	if existing.Status == StatusDeleted {
		return nil, fmt.Errorf("project is deleted")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	oldStatus := existing.Status
	if in.Status != "" && in.Status != oldStatus {
		if !CanTransition(oldStatus, in.Status) {
			return nil, fmt.Errorf("cannot move project from %s to %s", oldStatus, in.Status)
		}
		existing.Status = in.Status
		if in.Status == StatusCompleted {
			now := time.Now()
			existing.CompletedDate = &now
		}
	}

	existing.Name = in.Name
	existing.ProjectType = in.ProjectType
	existing.ClientID = in.ClientID
	existing.TAT = in.TAT
	existing.ExpectedSampleCount = in.ExpectedSampleCount
	existing.ProcessingSampleCount = in.ProcessingSampleCount
	existing.ProjectValue = in.ProjectValue
	existing.Notes = in.Notes
	existing.StartDate = in.StartDate
	existing.SalesRepID = in.SalesRepID
	existing.DueDate, _ = DueDate(existing.StartDate, existing.TAT)

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	if existing.Status != oldStatus {
		if err := s.repo.AppendLog(ctx, &Log{
			ProjectID:   existing.ID,
			Comment:     fmt.Sprintf("Status changed from %s to %s", oldStatus, existing.Status),
			LogType:     "status_change",
			CreatedByID: actor.ID,
		}); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

// SoftDelete marks the project deleted and writes the audit trail. A reason
// is mandatory for everyone except super_admin.
func (s *Service) SoftDelete(ctx context.Context, id int64, reason string, actor Actor) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("project not found")
	}
	if p.Status == StatusDeleted {
		return fmt.Errorf("project is already deleted")
	}
	if reason == "" {
		if actor.Role != auth.RoleSuperAdmin {
			return fmt.Errorf("a deletion reason is required")
		}
		reason = "deleted by administrator"
	}

	previousStatus := p.Status
	p.Status = StatusDeleted
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	var deletedByID int64
	if actor.ID != nil {
		deletedByID = *actor.ID
	}
	if err := s.audit.Record(ctx, &audit.DeletionLog{
		EntityType:       "project",
		EntityID:         p.ID,
		EntityIdentifier: p.ProjectID,
		DeletionReason:   reason,
		PreviousStatus:   previousStatus,
		DeletedBy:        actor.Username,
		DeletedByID:      deletedByID,
	}); err != nil {
		return err
	}
	return s.repo.AppendLog(ctx, &Log{
		ProjectID:   p.ID,
		Comment:     fmt.Sprintf("Project deleted: %s", reason),
		LogType:     "deletion",
		CreatedByID: actor.ID,
	})
}

func (s *Service) AddLog(ctx context.Context, projectID int64, comment string, actor Actor) (*Log, error) {
	if comment == "" {
		return nil, fmt.Errorf("comment is required")
	}
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("project not found")
	}
	l := &Log{
		ProjectID:   projectID,
		Comment:     comment,
		LogType:     "comment",
		CreatedByID: actor.ID,
	}
	if err := s.repo.AppendLog(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) GetLogs(ctx context.Context, projectID int64) ([]*Log, error) {
	return s.repo.GetLogs(ctx, projectID)
}

func (s *Service) UploadAttachment(ctx context.Context, projectID int64, originalFilename, fileType string, content io.Reader, actor Actor) (*Attachment, error) {
	if originalFilename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("project not found")
	}

	key := uuid.NewString()
	size, _, err := s.files.Save(ctx, key, content, maxAttachmentBytes)
	if err != nil {
		return nil, err
	}

	a := &Attachment{
		ProjectID:        projectID,
		Filename:         key,
		OriginalFilename: originalFilename,
		FilePath:         key,
		FileSize:         size,
		FileType:         fileType,
		UploadedByID:     actor.ID,
	}
	if err := s.repo.CreateAttachment(ctx, a); err != nil {
		s.files.Delete(ctx, key)
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAttachments(ctx context.Context, projectID int64) ([]*Attachment, error) {
	return s.repo.ListAttachments(ctx, projectID)
}

// OpenAttachment returns the metadata row and a reader over the stored bytes.
// The caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, id int64) (*Attachment, io.ReadCloser, error) {
	a, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("attachment not found")
	}
	rc, err := s.files.Open(ctx, a.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, id int64) error {
	a, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return fmt.Errorf("attachment not found")
	}
	if err := s.repo.DeleteAttachment(ctx, id); err != nil {
		return err
	}
	return s.files.Delete(ctx, a.FilePath)
}
