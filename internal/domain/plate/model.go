package plate

import (
	"fmt"
	"time"
)

// Plate statuses. Well contents are only editable in draft; finalize freezes
// the layout and hands the plate to a technician.
const (
	StatusDraft      = "draft"
	StatusFinalized  = "finalized"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var statusTransitions = map[string][]string{
	StatusDraft:      {StatusFinalized},
	StatusFinalized:  {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	TotalWells = 96
	// Four wells are reserved for control pairs, leaving 92 for samples.
	MaxSampleWells = 92
)

type Plate struct {
	ID        int64  `db:"id" json:"id"`
	PlateID   string `db:"plate_id" json:"plate_id"`
	PlateName string `db:"plate_name" json:"plate_name"`
	Status    string `db:"status" json:"status"`

	AssignedTechID *int64     `db:"assigned_tech_id" json:"assigned_tech_id,omitempty"`
	AssignedDate   *time.Time `db:"assigned_date" json:"assigned_date,omitempty"`

	ExtractionMethod *string `db:"extraction_method" json:"extraction_method,omitempty"`
	LysisMethod      *string `db:"lysis_method" json:"lysis_method,omitempty"`
	ExtractionLot    *string `db:"extraction_lot" json:"extraction_lot,omitempty"`

	StartedDate   *time.Time `db:"started_date" json:"started_date,omitempty"`
	CompletedDate *time.Time `db:"completed_date" json:"completed_date,omitempty"`

	Notes *string `db:"notes" json:"notes,omitempty"`

	// Counts are populated on read, not stored.
	SampleCount  int `db:"-" json:"sample_count"`
	ControlCount int `db:"-" json:"control_count"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// WellAssignment records which sample sits in which well. Control wells carry
// a nil sample id.
type WellAssignment struct {
	ID           int64     `db:"id" json:"id"`
	PlateRefID   int64     `db:"plate_ref_id" json:"plate_ref_id"`
	SampleID     *int64    `db:"sample_id" json:"sample_id,omitempty"`
	WellPosition string    `db:"well_position" json:"well_position"`
	WellRow      string    `db:"well_row" json:"well_row"`
	WellColumn   int       `db:"well_column" json:"well_column"`
	IsControl    bool      `db:"is_control" json:"is_control"`
	ControlType  *string   `db:"control_type" json:"control_type,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Control types and categories.
const (
	ControlPositive = "positive"
	ControlNegative = "negative"

	CategoryExtraction  = "extraction"
	CategoryLibraryPrep = "library_prep"
)

// Control is a first-class tracked control sample on a plate.
type Control struct {
	ID              int64  `db:"id" json:"id"`
	ControlID       string `db:"control_id" json:"control_id"`
	PlateRefID      int64  `db:"plate_ref_id" json:"plate_ref_id"`
	ControlType     string `db:"control_type" json:"control_type"`
	ControlCategory string `db:"control_category" json:"control_category"`
	SetNumber       int    `db:"set_number" json:"set_number"`

	WellPosition string `db:"well_position" json:"well_position"`
	WellRow      string `db:"well_row" json:"well_row"`
	WellColumn   int    `db:"well_column" json:"well_column"`

	LotNumber      *string    `db:"lot_number" json:"lot_number,omitempty"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	Supplier       *string    `db:"supplier" json:"supplier,omitempty"`
	ProductName    *string    `db:"product_name" json:"product_name,omitempty"`

	InputVolume   float64 `db:"input_volume" json:"input_volume"`
	ElutionVolume float64 `db:"elution_volume" json:"elution_volume"`

	Concentration *float64 `db:"concentration" json:"concentration,omitempty"`
	Ratio260280   *float64 `db:"ratio_260_280" json:"ratio_260_280,omitempty"`
	Ratio260230   *float64 `db:"ratio_260_230" json:"ratio_260_230,omitempty"`
	QCPass        *bool    `db:"qc_pass" json:"qc_pass,omitempty"`
	QCNotes       *string  `db:"qc_notes" json:"qc_notes,omitempty"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// conventionalControlWells are where control pairs usually land, kept as the
// default suggestion in the plate editor.
var conventionalControlWells = map[string][2]string{
	CategoryExtraction:  {"H11", "H12"},
	CategoryLibraryPrep: {"G11", "G12"},
}

// ConventionalControlWells returns the customary positive/negative well pair
// for a control category, or false for an unknown category.
func ConventionalControlWells(category string) ([2]string, bool) {
	wells, ok := conventionalControlWells[category]
	return wells, ok
}

// ParsePosition validates a well position like "B7" and splits it into row
// letter and column number.
func ParsePosition(pos string) (string, int, error) {
	if len(pos) < 2 || len(pos) > 3 {
		return "", 0, fmt.Errorf("invalid well position %q", pos)
	}
	row := pos[0]
	if row < 'A' || row > 'H' {
		return "", 0, fmt.Errorf("invalid well row in %q", pos)
	}
	col := 0
	for _, r := range pos[1:] {
		if r < '0' || r > '9' {
			return "", 0, fmt.Errorf("invalid well column in %q", pos)
		}
		col = col*10 + int(r-'0')
	}
	if col < 1 || col > 12 {
		return "", 0, fmt.Errorf("well column out of range in %q", pos)
	}
	return string(row), col, nil
}

// FillOrder yields all 96 positions column by column: A1, B1 .. H1, A2 ..
func FillOrder() []string {
	out := make([]string, 0, TotalWells)
	for col := 1; col <= 12; col++ {
		for row := 'A'; row <= 'H'; row++ {
			out = append(out, fmt.Sprintf("%c%d", row, col))
		}
	}
	return out
}

// Layout is the full 96-well view of a plate.
type Layout struct {
	PlateID      string       `json:"plate_id"`
	PlateName    string       `json:"plate_name"`
	Status       string       `json:"status"`
	Wells        []LayoutWell `json:"wells"`
	SampleCount  int          `json:"sample_count"`
	ControlCount int          `json:"control_count"`
	EmptyCount   int          `json:"empty_count"`
}

type LayoutWell struct {
	Position    string `json:"position"`
	Row         string `json:"row"`
	Column      int    `json:"column"`
	ContentType string `json:"content_type"` // sample, control, empty

	SampleID       *int64  `json:"sample_id,omitempty"`
	SampleBarcode  *string `json:"sample_barcode,omitempty"`
	SampleType     *string `json:"sample_type,omitempty"`
	ClientSampleID *string `json:"client_sample_id,omitempty"`

	ControlID       *string `json:"control_id,omitempty"`
	ControlType     *string `json:"control_type,omitempty"`
	ControlCategory *string `json:"control_category,omitempty"`

	Concentration *float64 `json:"concentration,omitempty"`
}

// WellQC carries per-well measurement data submitted on completion.
type WellQC struct {
	Concentration *float64 `json:"concentration,omitempty"`
	Ratio260280   *float64 `json:"ratio_260_280,omitempty"`
	Ratio260230   *float64 `json:"ratio_260_230,omitempty"`
	Pass          *bool    `json:"pass,omitempty"`
}

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// ControlSetRequest adds a positive/negative pair. The first two positions
// are used in that order.
type ControlSetRequest struct {
	ControlCategory string     `json:"control_category"`
	Positions       []string   `json:"positions"`
	LotNumber       *string    `json:"lot_number,omitempty"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
	Supplier        *string    `json:"supplier,omitempty"`
	ProductName     *string    `json:"product_name,omitempty"`
	InputVolume     float64    `json:"input_volume,omitempty"`
	ElutionVolume   float64    `json:"elution_volume,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

type CreateInput struct {
	PlateName        string  `json:"plate_name"`
	ExtractionMethod *string `json:"extraction_method,omitempty"`
	LysisMethod      *string `json:"lysis_method,omitempty"`
	ExtractionLot    *string `json:"extraction_lot,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	AssignedTechID   *int64  `json:"assigned_tech_id,omitempty"`
}

type UpdateInput struct {
	PlateName        *string `json:"plate_name,omitempty"`
	ExtractionMethod *string `json:"extraction_method,omitempty"`
	LysisMethod      *string `json:"lysis_method,omitempty"`
	ExtractionLot    *string `json:"extraction_lot,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	AssignedTechID   *int64  `json:"assigned_tech_id,omitempty"`
}

// AddSamplesRequest carries parallel arrays: positions[i] is the target well
// for sample_ids[i]. Empty positions means auto-fill.
type AddSamplesRequest struct {
	SampleIDs []int64  `json:"sample_ids"`
	Positions []string `json:"positions,omitempty"`
}
