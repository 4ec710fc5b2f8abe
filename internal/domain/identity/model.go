package identity

import "time"

// User is a staff account. HashedPassword never leaves the API.
type User struct {
	ID                  int64      `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	Username            string     `db:"username" json:"username"`
	FullName            string     `db:"full_name" json:"full_name"`
	HashedPassword      string     `db:"hashed_password" json:"-"`
	Role                string     `db:"role" json:"role"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	IsLocked            bool       `db:"is_locked" json:"is_locked"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"failed_login_attempts"`
	LastLogin           *time.Time `db:"last_login" json:"last_login,omitempty"`
	SignatureMeaning    *string    `db:"signature_meaning" json:"signature_meaning,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type CreateUserInput struct {
	Email            string  `json:"email"`
	Username         string  `json:"username"`
	FullName         string  `json:"full_name"`
	Password         string  `json:"password"`
	Role             string  `json:"role"`
	SignatureMeaning *string `json:"signature_meaning"`
}

type UpdateUserInput struct {
	Email            *string `json:"email"`
	FullName         *string `json:"full_name"`
	Role             *string `json:"role"`
	IsActive         *bool   `json:"is_active"`
	SignatureMeaning *string `json:"signature_meaning"`
}

type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
