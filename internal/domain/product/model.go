package product

import "time"

// Product maps to the products table (lab consumables and reagent orders).
type Product struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Quantity        *int       `db:"quantity" json:"quantity,omitempty"`
	CatalogNumber   *string    `db:"catalog_number" json:"catalog_number,omitempty"`
	OrderDate       *time.Time `db:"order_date" json:"order_date,omitempty"`
	Requestor       *string    `db:"requestor" json:"requestor,omitempty"`
	QuotationStatus *string    `db:"quotation_status" json:"quotation_status,omitempty"`
	TotalValue      *float64   `db:"total_value" json:"total_value,omitempty"`
	Status          *string    `db:"status" json:"status,omitempty"`
	RequisitionID   *string    `db:"requisition_id" json:"requisition_id,omitempty"`
	Vendor          *string    `db:"vendor" json:"vendor,omitempty"`
	Chartfield      *string    `db:"chartfield" json:"chartfield,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	Storage         *string    `db:"storage" json:"storage,omitempty"`
	CreatedByID     *int64     `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
