package audit

import "time"

// DeletionLog is an append-only record of a soft-deleted sample or project.
// Rows are never updated or removed.
type DeletionLog struct {
	ID               int64     `db:"id" json:"id"`
	EntityType       string    `db:"entity_type" json:"entity_type"` // sample, project
	EntityID         int64     `db:"entity_id" json:"entity_id"`
	EntityIdentifier string    `db:"entity_identifier" json:"entity_identifier"` // barcode or project_id
	DeletionReason   string    `db:"deletion_reason" json:"deletion_reason"`
	PreviousStatus   string    `db:"previous_status" json:"previous_status"`
	DeletedBy        string    `db:"deleted_by" json:"deleted_by"`
	DeletedByID      int64     `db:"deleted_by_id" json:"deleted_by_id"`
	DeletedAt        time.Time `db:"deleted_at" json:"deleted_at"`
}
