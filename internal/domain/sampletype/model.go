package sampletype

import "time"

// SampleType maps to the sample_types table. Types are reference data: they
// can be deactivated but never deleted, since samples keep pointing at them.
type SampleType struct {
	ID                  int64     `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	DisplayName         string    `db:"display_name" json:"display_name"`
	Description         *string   `db:"description" json:"description,omitempty"`
	RequiresDescription bool      `db:"requires_description" json:"requires_description"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	SortOrder           int       `db:"sort_order" json:"sort_order"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// alreadyDNA lists the type names whose material skips extraction: after
// accessioning these route straight to the DNA quantification queue.
var alreadyDNA = map[string]bool{
	"dna":          true,
	"dna_plate":    true,
	"cdna":         true,
	"dna_cdna":     true,
	"dna_library":  true,
	"rna_library":  true,
	"library_pool": true,
}

// IsAlreadyDNA reports whether samples of the named type contain extracted
// material and therefore bypass the extraction queue.
func IsAlreadyDNA(name string) bool {
	return alreadyDNA[name]
}
