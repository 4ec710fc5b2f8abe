package employee

import "time"

// Employee maps to the employees table (staff referenced as sales reps on
// projects; not the same thing as a login account).
type Employee struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Title      string    `db:"title" json:"title"`
	Department string    `db:"department" json:"department"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
