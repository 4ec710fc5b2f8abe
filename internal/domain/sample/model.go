package sample

import "time"

// Sample statuses. The happy path runs top to bottom; failed and cancelled
// are reachable from any processing state, deleted only via soft delete.
const (
	StatusRegistered       = "registered"
	StatusReceived         = "received"
	StatusAccessioning     = "accessioning"
	StatusAccessioned      = "accessioned"
	StatusExtractionQueue  = "extraction_queue"
	StatusInExtraction     = "in_extraction"
	StatusExtracted        = "extracted"
	StatusDNAQuantQueue    = "dna_quant_queue"
	StatusInLibraryPrep    = "in_library_prep"
	StatusLibraryPrepped   = "library_prepped"
	StatusInSequencing     = "in_sequencing"
	StatusSequenced        = "sequenced"
	StatusInAnalysis       = "in_analysis"
	StatusAnalysisComplete = "analysis_complete"
	StatusDelivered        = "delivered"
	StatusFailed           = "failed"
	StatusCancelled        = "cancelled"
	StatusDeleted          = "deleted"
)

// statusTransitions is the exhaustive state machine: state -> legal next
// states. failed/cancelled are appended for every processing state below.
var statusTransitions = map[string][]string{
	StatusRegistered:       {StatusReceived},
	StatusReceived:         {StatusAccessioning, StatusAccessioned},
	StatusAccessioning:     {StatusAccessioned},
	StatusAccessioned:      {StatusExtractionQueue, StatusDNAQuantQueue},
	StatusExtractionQueue:  {StatusInExtraction},
	StatusInExtraction:     {StatusExtracted},
	StatusExtracted:        {StatusDNAQuantQueue, StatusInLibraryPrep},
	StatusDNAQuantQueue:    {StatusInLibraryPrep},
	StatusInLibraryPrep:    {StatusLibraryPrepped},
	StatusLibraryPrepped:   {StatusInSequencing},
	StatusInSequencing:     {StatusSequenced},
	StatusSequenced:        {StatusInAnalysis},
	StatusInAnalysis:       {StatusAnalysisComplete},
	StatusAnalysisComplete: {StatusDelivered},
	StatusDelivered:        {},
	StatusFailed:           {},
	StatusCancelled:        {},
	StatusDeleted:          {},
}

func init() {
	for from, next := range statusTransitions {
		switch from {
		case StatusDelivered, StatusFailed, StatusCancelled, StatusDeleted:
			continue
		}
		statusTransitions[from] = append(next, StatusFailed, StatusCancelled)
	}
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Sample struct {
	ID              int64   `db:"id" json:"id"`
	Barcode         string  `db:"barcode" json:"barcode"`
	ClientSampleID  *string `db:"client_sample_id" json:"client_sample_id,omitempty"`
	ProjectID       int64   `db:"project_id" json:"project_id"`
	SampleTypeID    *int64  `db:"sample_type_id" json:"sample_type_id,omitempty"`
	SampleTypeName  *string `db:"sample_type_name" json:"sample_type_name,omitempty"`
	SampleTypeOther *string `db:"sample_type_other" json:"sample_type_other,omitempty"`
	Status          string  `db:"status" json:"status"`

	ParentSampleID  *int64  `db:"parent_sample_id" json:"parent_sample_id,omitempty"`
	ReprocessType   *string `db:"reprocess_type" json:"reprocess_type,omitempty"`
	ReprocessReason *string `db:"reprocess_reason" json:"reprocess_reason,omitempty"`
	ReprocessCount  int     `db:"reprocess_count" json:"reprocess_count"`

	StorageUnit       *string `db:"storage_unit" json:"storage_unit,omitempty"`
	StorageShelf      *string `db:"storage_shelf" json:"storage_shelf,omitempty"`
	StorageBox        *string `db:"storage_box" json:"storage_box,omitempty"`
	StoragePosition   *string `db:"storage_position" json:"storage_position,omitempty"`
	StorageLocationID *int64  `db:"storage_location_id" json:"storage_location_id,omitempty"`

	TargetDepth  *float64   `db:"target_depth" json:"target_depth,omitempty"`
	WellLocation *string    `db:"well_location" json:"well_location,omitempty"`
	DueDate      *time.Time `db:"due_date" json:"due_date,omitempty"`

	ReceivedDate      *time.Time `db:"received_date" json:"received_date,omitempty"`
	AccessionedDate   *time.Time `db:"accessioned_date" json:"accessioned_date,omitempty"`
	AccessionedByID   *int64     `db:"accessioned_by_id" json:"accessioned_by_id,omitempty"`
	AccessioningNotes *string    `db:"accessioning_notes" json:"accessioning_notes,omitempty"`

	HasFlag          bool    `db:"has_flag" json:"has_flag"`
	FlagAbbreviation *string `db:"flag_abbreviation" json:"flag_abbreviation,omitempty"`
	FlagNotes        *string `db:"flag_notes" json:"flag_notes,omitempty"`

	HasDiscrepancy            bool       `db:"has_discrepancy" json:"has_discrepancy"`
	DiscrepancyNotes          *string    `db:"discrepancy_notes" json:"discrepancy_notes,omitempty"`
	DiscrepancyResolved       bool       `db:"discrepancy_resolved" json:"discrepancy_resolved"`
	DiscrepancyResolutionDate *time.Time `db:"discrepancy_resolution_date" json:"discrepancy_resolution_date,omitempty"`
	DiscrepancyResolvedByID   *int64     `db:"discrepancy_resolved_by_id" json:"discrepancy_resolved_by_id,omitempty"`

	QueuePriority int     `db:"queue_priority" json:"queue_priority"`
	QueueNotes    *string `db:"queue_notes" json:"queue_notes,omitempty"`
	FailedStage   *string `db:"failed_stage" json:"failed_stage,omitempty"`
	FailureReason *string `db:"failure_reason" json:"failure_reason,omitempty"`
	BatchID       *string `db:"batch_id" json:"batch_id,omitempty"`

	ExtractionPlateRefID    *int64   `db:"extraction_plate_ref_id" json:"extraction_plate_ref_id,omitempty"`
	ExtractionPlateID       *string  `db:"extraction_plate_id" json:"extraction_plate_id,omitempty"`
	ExtractionWellPosition  *string  `db:"extraction_well_position" json:"extraction_well_position,omitempty"`
	ExtractionConcentration *float64 `db:"extraction_concentration" json:"extraction_concentration,omitempty"`

	ExtractionKit        *string  `db:"extraction_kit" json:"extraction_kit,omitempty"`
	ExtractionLot        *string  `db:"extraction_lot" json:"extraction_lot,omitempty"`
	DNAConcentrationNgUl *float64 `db:"dna_concentration_ng_ul" json:"dna_concentration_ng_ul,omitempty"`
	LibraryPrepKit       *string  `db:"library_prep_kit" json:"library_prep_kit,omitempty"`
	SequencingRunID      *string  `db:"sequencing_run_id" json:"sequencing_run_id,omitempty"`
	AchievedDepth        *float64 `db:"achieved_depth" json:"achieved_depth,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Blocked reports whether an unresolved discrepancy holds the sample back.
func (s *Sample) Blocked() bool {
	return s.HasDiscrepancy && !s.DiscrepancyResolved
}

type Log struct {
	ID          int64     `db:"id" json:"id"`
	SampleID    int64     `db:"sample_id" json:"sample_id"`
	Comment     string    `db:"comment" json:"comment"`
	LogType     string    `db:"log_type" json:"log_type"` // creation, update, status_change, comment, accession
	OldValue    *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string   `db:"new_value" json:"new_value,omitempty"`
	CreatedByID *int64    `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DiscrepancyApproval tracks a quality hold. Approved is tri-state: nil while
// pending, then fixed forever once decided.
type DiscrepancyApproval struct {
	ID                 int64      `db:"id" json:"id"`
	SampleID           int64      `db:"sample_id" json:"sample_id"`
	DiscrepancyType    string     `db:"discrepancy_type" json:"discrepancy_type"`
	DiscrepancyDetails string     `db:"discrepancy_details" json:"discrepancy_details"`
	CreatedByID        *int64     `db:"created_by_id" json:"created_by_id,omitempty"`
	Approved           *bool      `db:"approved" json:"approved"`
	ApprovedByID       *int64     `db:"approved_by_id" json:"approved_by_id,omitempty"`
	ApprovalReason     *string    `db:"approval_reason" json:"approval_reason,omitempty"`
	SignatureMeaning   *string    `db:"signature_meaning" json:"signature_meaning,omitempty"`
	DecidedAt          *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

var discrepancyTypes = map[string]bool{
	"label_mismatch":        true,
	"quantity_shortfall":    true,
	"damaged_container":     true,
	"temperature_excursion": true,
	"missing_paperwork":     true,
	"wrong_sample_type":     true,
	"other":                 true,
}

type ApprovalAttachment struct {
	ID               int64     `db:"id" json:"id"`
	ApprovalID       int64     `db:"approval_id" json:"approval_id"`
	Filename         string    `db:"filename" json:"filename"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	FilePath         string    `db:"file_path" json:"-"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	FileType         string    `db:"file_type" json:"file_type"`
	UploadedByID     *int64    `db:"uploaded_by_id" json:"uploaded_by_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// queueStatuses maps each named queue to the statuses that define it. The
// reprocess queue is special-cased on reprocess_count.
var queueStatuses = map[string][]string{
	"accessioning":        {StatusReceived, StatusAccessioning},
	"accessioned":         {StatusAccessioned},
	"extraction":          {StatusExtractionQueue},
	"extraction_active":   {StatusInExtraction},
	"dna_quant":           {StatusDNAQuantQueue, StatusExtracted},
	"library_prep_active": {StatusInLibraryPrep},
	"sequencing":          {StatusLibraryPrepped},
	"sequencing_active":   {StatusInSequencing},
	"analysis":            {StatusSequenced, StatusInAnalysis},
}

// queueAliases map alternate queue names onto a canonical queue so each
// status belongs to exactly one queue. Samples awaiting library prep are the
// dna_quant queue under either name.
var queueAliases = map[string]string{
	"library_prep": "dna_quant",
}

// CanonicalQueue resolves a queue name to its canonical form.
func CanonicalQueue(name string) string {
	if canonical, ok := queueAliases[name]; ok {
		return canonical
	}
	return name
}

// reprocessResumeStatus maps a failed stage to the status a reprocessed twin
// resumes from.
var reprocessResumeStatus = map[string]string{
	"extraction":   StatusExtractionQueue,
	"library_prep": StatusDNAQuantQueue,
	"sequencing":   StatusLibraryPrepped,
}

type ListFilter struct {
	ProjectID int64
	Status    string
	Search    string
	Limit     int
	Offset    int
}

// BulkUpdate applies the same update to a batch of samples.
type BulkUpdate struct {
	SampleIDs  []int64                `json:"sample_ids"`
	UpdateData map[string]interface{} `json:"update_data"`
}

// BulkOutcome reports the per-sample result of a bulk action.
type BulkOutcome struct {
	SampleID int64  `json:"sample_id"`
	Success  bool   `json:"success"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}
