package project

import "time"

// Project statuses. Forward path pending → pm_review → lab → bis → completed;
// hold/cancelled/deleted are side branches. Deleted rows stay in the table.
const (
	StatusPending   = "pending"
	StatusPMReview  = "pm_review"
	StatusLab       = "lab"
	StatusBIS       = "bis"
	StatusHold      = "hold"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusDeleted   = "deleted"
)

var projectTypes = map[string]bool{
	"WGS":           true,
	"V1V3_16S":      true,
	"V3V4_16S":      true,
	"ONT_WGS":       true,
	"ONT_V1V8":      true,
	"ANALYSIS_ONLY": true,
	"INTERNAL":      true,
	"CLINICAL":      true,
	"OTHER":         true,
}

// tatOffsets maps a turnaround-time bucket to the day offset added to
// start_date to produce due_date.
var tatOffsets = map[string]int{
	"DAYS_5_7":    7,
	"WEEKS_1_2":   14,
	"WEEKS_3_4":   28,
	"WEEKS_4_6":   42,
	"WEEKS_6_8":   56,
	"WEEKS_8_10":  70,
	"WEEKS_10_12": 84,
}

// DueDate computes start_date plus the fixed offset for the TAT bucket.
func DueDate(start time.Time, tat string) (time.Time, bool) {
	offset, ok := tatOffsets[tat]
	if !ok {
		return time.Time{}, false
	}
	return start.AddDate(0, 0, offset), true
}

type Project struct {
	ID                    int64      `db:"id" json:"id"`
	ProjectID             string     `db:"project_id" json:"project_id"`
	Name                  *string    `db:"name" json:"name,omitempty"`
	ProjectType           string     `db:"project_type" json:"project_type"`
	ClientID              int64      `db:"client_id" json:"client_id"`
	Status                string     `db:"status" json:"status"`
	TAT                   string     `db:"tat" json:"tat"`
	ExpectedSampleCount   int        `db:"expected_sample_count" json:"expected_sample_count"`
	ProcessingSampleCount *int       `db:"processing_sample_count" json:"processing_sample_count,omitempty"`
	ProjectValue          *float64   `db:"project_value" json:"project_value,omitempty"`
	Notes                 *string    `db:"notes" json:"notes,omitempty"`
	StartDate             time.Time  `db:"start_date" json:"start_date"`
	DueDate               time.Time  `db:"due_date" json:"due_date"`
	CompletedDate         *time.Time `db:"completed_date" json:"completed_date,omitempty"`
	CreatedByID           *int64     `db:"created_by_id" json:"created_by_id,omitempty"`
	SalesRepID            *int64     `db:"sales_rep_id" json:"sales_rep_id,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type Log struct {
	ID          int64     `db:"id" json:"id"`
	ProjectID   int64     `db:"project_id" json:"project_id"`
	Comment     string    `db:"comment" json:"comment"`
	LogType     string    `db:"log_type" json:"log_type"` // comment, status_change, creation, deletion
	CreatedByID *int64    `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Attachment struct {
	ID               int64     `db:"id" json:"id"`
	ProjectID        int64     `db:"project_id" json:"project_id"`
	Filename         string    `db:"filename" json:"filename"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	FilePath         string    `db:"file_path" json:"-"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	FileType         string    `db:"file_type" json:"file_type"`
	UploadedByID     *int64    `db:"uploaded_by_id" json:"uploaded_by_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ListFilter narrows the project listing.
type ListFilter struct {
	Status   string
	ClientID int64
	Search   string
	Limit    int
	Offset   int
}

// statusTransitions is the exhaustive transition table. Deleted is reachable
// only through the soft-delete path, never through a plain status update.
var statusTransitions = map[string][]string{
	StatusPending:   {StatusPMReview, StatusHold, StatusCancelled},
	StatusPMReview:  {StatusLab, StatusHold, StatusCancelled},
	StatusLab:       {StatusBIS, StatusHold, StatusCancelled},
	StatusBIS:       {StatusCompleted, StatusHold, StatusCancelled},
	StatusHold:      {StatusPending, StatusPMReview, StatusLab, StatusBIS, StatusCancelled},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusDeleted:   {},
}

// CanTransition reports whether a plain status update from one status to
// another is legal.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
