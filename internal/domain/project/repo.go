package project

import "context"

type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	GetByProjectID(ctx context.Context, projectID string) (*Project, error)
	Update(ctx context.Context, p *Project) error
	List(ctx context.Context, f ListFilter) ([]*Project, int, error)

	// MaxStandardNumber returns the highest numeric suffix among standard
	// CMBP##### project ids, 0 when none exist.
	MaxStandardNumber(ctx context.Context) (int, error)

	AppendLog(ctx context.Context, log *Log) error
	GetLogs(ctx context.Context, projectID int64) ([]*Log, error)

	CreateAttachment(ctx context.Context, a *Attachment) error
	GetAttachment(ctx context.Context, id int64) (*Attachment, error)
	ListAttachments(ctx context.Context, projectID int64) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, id int64) error
}
