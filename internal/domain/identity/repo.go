package identity

import "context"

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)

	// UpdateLoginState persists the lockout counters and last_login stamp
	// after an authentication attempt.
	UpdateLoginState(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id int64, hashedPassword string) error
}
