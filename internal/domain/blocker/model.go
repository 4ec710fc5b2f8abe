package blocker

import "time"

// Blocker maps to the blockers table (blocking reagents kept in inventory).
type Blocker struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Units       *int      `db:"units" json:"units,omitempty"`
	Storage     *string   `db:"storage" json:"storage,omitempty"`
	Location    *string   `db:"location" json:"location,omitempty"`
	Function    *string   `db:"function" json:"function,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedByID *int64    `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BlockerLog is an append-only change record for a blocker. BlockerID is
// nullable so deletion entries survive after the blocker row is removed.
type BlockerLog struct {
	ID          int64     `db:"id" json:"id"`
	BlockerID   *int64    `db:"blocker_id" json:"blocker_id,omitempty"`
	LogType     string    `db:"log_type" json:"log_type"` // creation, update, deletion
	OldValue    *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string   `db:"new_value" json:"new_value,omitempty"`
	Comment     *string   `db:"comment" json:"comment,omitempty"`
	CreatedByID *int64    `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
