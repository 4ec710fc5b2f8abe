package sample

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/platform/auth"
)

const (
	minDetailsLength   = 20
	maxAttachmentBytes = 10 << 20
)

// RaiseDiscrepancy opens an approval on the sample and places it on quality
// hold. The hold blocks forward transitions until a PM or super_admin decides.
func (s *Service) RaiseDiscrepancy(ctx context.Context, sampleID int64, discrepancyType, details string, actor Actor) (*DiscrepancyApproval, error) {
	if !discrepancyTypes[discrepancyType] {
		return nil, fmt.Errorf("unknown discrepancy type %q", discrepancyType)
	}
	if len(strings.TrimSpace(details)) < minDetailsLength {
		return nil, fmt.Errorf("discrepancy details must be at least %d characters", minDetailsLength)
	}

	smp, err := s.repo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("sample not found")
	}

	a := &DiscrepancyApproval{
		SampleID:           sampleID,
		DiscrepancyType:    discrepancyType,
		DiscrepancyDetails: details,
		CreatedByID:        actor.ID,
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateApproval(ctx, a); err != nil {
			return err
		}

		smp.HasDiscrepancy = true
		smp.DiscrepancyResolved = false
		smp.DiscrepancyNotes = &details
		if err := s.repo.Update(ctx, smp); err != nil {
			return err
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    sampleID,
			Comment:     fmt.Sprintf("Discrepancy raised: %s", discrepancyType),
			LogType:     "update",
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListDiscrepancies(ctx context.Context, sampleID int64) ([]*DiscrepancyApproval, error) {
	return s.repo.ListApprovals(ctx, sampleID)
}

type DecisionRequest struct {
	Approved         bool   `json:"approved"`
	ApprovalReason   string `json:"approval_reason"`
	Password         string `json:"password"`
	SignatureMeaning string `json:"signature_meaning"`
}

// DecideDiscrepancy records an approve/reject decision with an electronic
// signature. Decisions are terminal: a decided approval can never be edited.
func (s *Service) DecideDiscrepancy(ctx context.Context, sampleID, approvalID int64, req DecisionRequest, actor Actor) (*DiscrepancyApproval, error) {
	if actor.Role != auth.RolePM && actor.Role != auth.RoleSuperAdmin {
		return nil, fmt.Errorf("only a PM or administrator may decide discrepancies")
	}
	if len(strings.TrimSpace(req.ApprovalReason)) < minDetailsLength {
		return nil, fmt.Errorf("approval reason must be at least %d characters", minDetailsLength)
	}
	if req.SignatureMeaning == "" {
		return nil, fmt.Errorf("signature meaning is required")
	}
	if actor.ID == nil {
		return nil, fmt.Errorf("authenticated user required")
	}
	if err := s.signatures.VerifyPassword(ctx, *actor.ID, req.Password); err != nil {
		return nil, fmt.Errorf("electronic signature rejected: %w", err)
	}

	a, err := s.repo.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("approval not found")
	}
	if a.SampleID != sampleID {
		return nil, fmt.Errorf("approval does not belong to this sample")
	}
	if a.Approved != nil {
		return nil, fmt.Errorf("approval has already been decided")
	}

	now := time.Now()
	a.Approved = &req.Approved
	a.ApprovedByID = actor.ID
	a.ApprovalReason = &req.ApprovalReason
	a.SignatureMeaning = &req.SignatureMeaning
	a.DecidedAt = &now

	decision := "rejected"
	if req.Approved {
		decision = "approved"
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateApproval(ctx, a); err != nil {
			return err
		}

		if req.Approved {
			smp, err := s.repo.GetByID(ctx, sampleID)
			if err != nil {
				return err
			}
			smp.DiscrepancyResolved = true
			smp.DiscrepancyResolutionDate = &now
			smp.DiscrepancyResolvedByID = actor.ID
			if err := s.repo.Update(ctx, smp); err != nil {
				return err
			}
		}
		return s.repo.AppendLog(ctx, &Log{
			SampleID:    sampleID,
			Comment:     fmt.Sprintf("Discrepancy %s: %s", decision, req.ApprovalReason),
			LogType:     "update",
			CreatedByID: actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DiscrepancyDecisionsTotal.WithLabelValues(decision).Inc()
	}
	return a, nil
}

// UploadDiscrepancyAttachment stores supporting evidence for an approval.
// Attachments are immutable once written.
func (s *Service) UploadDiscrepancyAttachment(ctx context.Context, approvalID int64, originalFilename, fileType string, content io.Reader, actor Actor) (*ApprovalAttachment, error) {
	if originalFilename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if _, err := s.repo.GetApproval(ctx, approvalID); err != nil {
		return nil, fmt.Errorf("approval not found")
	}

	key := uuid.NewString()
	size, _, err := s.files.Save(ctx, key, content, maxAttachmentBytes)
	if err != nil {
		return nil, err
	}

	a := &ApprovalAttachment{
		ApprovalID:       approvalID,
		Filename:         key,
		OriginalFilename: originalFilename,
		FilePath:         key,
		FileSize:         size,
		FileType:         fileType,
		UploadedByID:     actor.ID,
	}
	if err := s.repo.CreateApprovalAttachment(ctx, a); err != nil {
		s.files.Delete(ctx, key)
		return nil, err
	}
	return a, nil
}

func (s *Service) ListDiscrepancyAttachments(ctx context.Context, approvalID int64) ([]*ApprovalAttachment, error) {
	return s.repo.ListApprovalAttachments(ctx, approvalID)
}

func (s *Service) OpenDiscrepancyAttachment(ctx context.Context, id int64) (*ApprovalAttachment, io.ReadCloser, error) {
	a, err := s.repo.GetApprovalAttachment(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("attachment not found")
	}
	rc, err := s.files.Open(ctx, a.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}
