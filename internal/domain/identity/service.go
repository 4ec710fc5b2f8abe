package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lims/lims/internal/platform/auth"
)

const maxFailedLogins = 5

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountLocked      = errors.New("account is locked, contact an administrator")
	ErrAccountInactive    = errors.New("account is deactivated")
)

type Service struct {
	repo   Repository
	issuer *auth.TokenIssuer
}

func NewService(repo Repository, issuer *auth.TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Login authenticates a user and returns a signed access token. Five
// consecutive failures lock the account until an administrator unlocks it.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.IsLocked {
		return nil, ErrAccountLocked
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= maxFailedLogins {
			u.IsLocked = true
		}
		if err := s.repo.UpdateLoginState(ctx, u); err != nil {
			return nil, err
		}
		if u.IsLocked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	u.FailedLoginAttempts = 0
	u.LastLogin = &now
	if err := s.repo.UpdateLoginState(ctx, u); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(strconv.FormatInt(u.ID, 10), u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        u,
	}, nil
}

// VerifyPassword re-checks the caller's password. Used by the electronic
// signature flow, where each decision requires a fresh credential entry.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return fmt.Errorf("invalid password")
	}
	return nil
}

func validRole(role string) bool {
	for _, r := range auth.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, fmt.Errorf("full name is required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if !validRole(in.Role) {
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if existing, _ := s.repo.GetByUsername(ctx, in.Username); existing != nil {
		return nil, fmt.Errorf("username already taken")
	}
	if existing, _ := s.repo.GetByEmail(ctx, in.Email); existing != nil {
		return nil, fmt.Errorf("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:            in.Email,
		Username:         in.Username,
		FullName:         in.FullName,
		HashedPassword:   string(hash),
		Role:             in.Role,
		IsActive:         true,
		SignatureMeaning: in.SignatureMeaning,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	if in.Email != nil {
		if !strings.Contains(*in.Email, "@") {
			return nil, fmt.Errorf("a valid email is required")
		}
		u.Email = *in.Email
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.Role != nil {
		if !validRole(*in.Role) {
			return nil, fmt.Errorf("unknown role %q", *in.Role)
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.SignatureMeaning != nil {
		u.SignatureMeaning = in.SignatureMeaning
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, id, string(hash))
}

// Unlock clears a lockout and resets the failure counter.
func (s *Service) Unlock(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	u.IsLocked = false
	u.FailedLoginAttempts = 0
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLoginState(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// EnsureAdmin creates the bootstrap super_admin account when absent.
func (s *Service) EnsureAdmin(ctx context.Context, email, username, password string) (*User, bool, error) {
	if existing, _ := s.repo.GetByUsername(ctx, username); existing != nil {
		return existing, false, nil
	}
	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:    email,
		Username: username,
		FullName: "Admin User",
		Password: password,
		Role:     auth.RoleSuperAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}
