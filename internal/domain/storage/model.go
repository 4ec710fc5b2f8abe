package storage

import "time"

// StorageLocation maps to the storage_locations table. A location is one
// physical slot (freezer/shelf/box and optional position within the box).
type StorageLocation struct {
	ID          int64     `db:"id" json:"id"`
	Freezer     string    `db:"freezer" json:"freezer"`
	Shelf       string    `db:"shelf" json:"shelf"`
	Box         string    `db:"box" json:"box"`
	Position    *string   `db:"position" json:"position,omitempty"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
