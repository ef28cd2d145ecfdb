package core

import (
	"context"
	"time"
)

// Roles. Officers prepare loans; managers take the decisions that move money.
const (
	RoleOfficer = "officer"
	RoleManager = "manager"
)

// User is an authenticated operator scoped to one company.
type User struct {
	ID           int
	CompanyID    int
	CompanyCode  string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// CanDecide reports whether the user may approve, reject, register or disburse loans.
func (u *User) CanDecide() bool { return u.Role == RoleManager }

// UserService provides user lookup operations.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID int) (*User, error)
}
