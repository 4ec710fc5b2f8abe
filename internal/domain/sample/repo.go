package sample

import "context"

type Repository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id int64) (*Sample, error)
	GetByBarcode(ctx context.Context, barcode string) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	List(ctx context.Context, f ListFilter) ([]*Sample, int, error)
	BarcodeExists(ctx context.Context, barcode string) (bool, error)

	// ListByStatuses drives the queue views: priority first, oldest first.
	ListByStatuses(ctx context.Context, statuses []string, limit, offset int) ([]*Sample, int, error)
	ListReprocessQueue(ctx context.Context, limit, offset int) ([]*Sample, int, error)
	ListByPlate(ctx context.Context, plateRefID int64) ([]*Sample, error)

	AppendLog(ctx context.Context, log *Log) error
	GetLogs(ctx context.Context, sampleID int64) ([]*Log, error)

	CreateApproval(ctx context.Context, a *DiscrepancyApproval) error
	GetApproval(ctx context.Context, id int64) (*DiscrepancyApproval, error)
	ListApprovals(ctx context.Context, sampleID int64) ([]*DiscrepancyApproval, error)
	UpdateApproval(ctx context.Context, a *DiscrepancyApproval) error

	CreateApprovalAttachment(ctx context.Context, a *ApprovalAttachment) error
	GetApprovalAttachment(ctx context.Context, id int64) (*ApprovalAttachment, error)
	ListApprovalAttachments(ctx context.Context, approvalID int64) ([]*ApprovalAttachment, error)

	// InTx runs fn with a transaction on the context so a status change and
	// its log entry commit or roll back as one unit.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
