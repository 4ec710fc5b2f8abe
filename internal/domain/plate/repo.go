package plate

import "context"

type Repository interface {
	Create(ctx context.Context, p *Plate) error
	GetByID(ctx context.Context, id int64) (*Plate, error)
	// GetByIDForUpdate locks the plate row for the rest of the transaction so
	// concurrent editors serialize on it. Only meaningful inside InTx.
	GetByIDForUpdate(ctx context.Context, id int64) (*Plate, error)
	Update(ctx context.Context, p *Plate) error
	List(ctx context.Context, f ListFilter) ([]*Plate, int, error)

	CreateWell(ctx context.Context, w *WellAssignment) error
	DeleteWellBySample(ctx context.Context, plateRefID, sampleID int64) error
	DeleteWellByPosition(ctx context.Context, plateRefID int64, position string) error
	ListWells(ctx context.Context, plateRefID int64) ([]*WellAssignment, error)

	CreateControl(ctx context.Context, c *Control) error
	GetControlByControlID(ctx context.Context, plateRefID int64, controlID string) (*Control, error)
	DeleteControl(ctx context.Context, id int64) error
	ListControls(ctx context.Context, plateRefID int64) ([]*Control, error)
	CountControls(ctx context.Context, plateRefID int64, controlType, category string) (int, error)
	UpdateControl(ctx context.Context, c *Control) error

	// InTx runs fn with a transaction on the context so that well assignment
	// checks and writes commit or roll back as one unit.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
