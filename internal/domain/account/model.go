package account

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
)

// Role constants
const (
	RoleDirector = "director"
	RoleTeacher  = "teacher"
	RoleStaff    = "staff"
)

// Capability names. Core components never inspect roles directly; they ask
// for a boolean capability.
const (
	CapGridView         = "grid.view"
	CapAttendanceEdit   = "attendance.edit"
	CapSalaryView       = "salary.view"
	CapSettlementManage = "settlement.manage"
	CapConfigEdit       = "config.edit"
	CapTermManage       = "term.manage"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleDirector, RoleTeacher, RoleStaff}

// roleCapabilities is the role -> capability grant table.
var roleCapabilities = map[string][]string{
	RoleDirector: {CapGridView, CapAttendanceEdit, CapSalaryView, CapSettlementManage, CapConfigEdit, CapTermManage},
	RoleTeacher:  {CapGridView, CapAttendanceEdit, CapSalaryView},
	RoleStaff:    {CapGridView, CapAttendanceEdit, CapTermManage},
}

// Domain errors
var (
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidRole      = errors.New("role must be one of: director, teacher, staff")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrWrongPassword    = errors.New("incorrect password")
)

// Account is one dashboard login. Teachers are linked to their compensation
// records through TeacherID.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	TeacherID    string // set for teacher-role accounts
	CreatedAt    time.Time
	FailedLogins int
	LockedUntil  time.Time
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return errors.New("email cannot exceed 254 characters")
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	if !isValidRole(a.Role) {
		return ErrInvalidRole
	}
	return nil
}

// HasCapability returns true if the account's role grants the capability.
// INVARIANT: Account fields are not mutated
func (a *Account) HasCapability(capability string) bool {
	for _, c := range roleCapabilities[a.Role] {
		if c == capability {
			return true
		}
	}
	return false
}

// SetPassword hashes and stores a password using bcrypt with cost 12.
// PRE: plaintext is non-empty and >= 12 characters
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < 12 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked returns true if the account is currently locked out.
// INVARIANT: Account fields are not mutated
func (a *Account) IsLocked() bool {
	if a.LockedUntil.IsZero() {
		return false
	}
	return time.Now().Before(a.LockedUntil)
}

// RecordFailedLogin increments the failed login counter and locks the
// account after 5 failures.
// PRE: Account exists
// POST: FailedLogins incremented; LockedUntil set if >= 5 failures
func (a *Account) RecordFailedLogin() {
	a.FailedLogins++
	if a.FailedLogins >= 5 {
		a.LockedUntil = time.Now().Add(15 * time.Minute)
	}
}

// ResetFailedLogins clears the failed login counter and lock.
// PRE: Account exists
// POST: FailedLogins is 0, LockedUntil is zero
func (a *Account) ResetFailedLogins() {
	a.FailedLogins = 0
	a.LockedUntil = time.Time{}
}

func isValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
