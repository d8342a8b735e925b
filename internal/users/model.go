// Package users manages staff accounts within a tenant.
package users

import (
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// User is a staff account. Emails are unique per tenant, case-insensitively.
type User struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name,omitempty"`
	HashedPassword string     `json:"-"`
	IsActive       bool       `json:"is_active"`
	IsSuperuser    bool       `json:"is_superuser"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SetPassword hashes and stores password.
func (u *User) SetPassword(password string, cost int) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.HashedPassword = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil
}

// CreateInput is a new account.
type CreateInput struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UpdateInput is a partial profile change. CurrentPassword is required when
// users change their own password.
type UpdateInput struct {
	Email           *string `json:"email"`
	FullName        *string `json:"full_name"`
	Password        *string `json:"password"`
	CurrentPassword *string `json:"current_password"`
	IsSuperuser     *bool   `json:"is_superuser"`
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email is not a valid email address")
	}
	return email, nil
}
