package employee

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an employee record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDisabled:
		return true
	}
	return false
}

// Role distinguishes administrators from regular employees.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Profile holds the employee-facing fields of a record.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Position  string `json:"position,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarRef string `json:"avatar_ref,omitempty"`
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Record is the authoritative employee document. ID equals the account id.
// Approved mirrors Status == StatusApproved and is maintained by the store.
type Record struct {
	ID string `json:"id"`
	Profile
	Role       Role       `json:"role"`
	Status     Status     `json:"status"`
	Approved   bool       `json:"approved"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the record carries the admin role.
func (r Record) IsAdmin() bool { return r.Role == RoleAdmin }

// ProfilePatch lists the fields an employee may edit. Nil fields are untouched.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Position  *string `json:"position,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarRef *string `json:"avatar_ref,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil &&
		p.Position == nil && p.Bio == nil && p.AvatarRef == nil
}

// Apply writes the patch onto a profile copy.
func (p ProfilePatch) Apply(dst Profile) Profile {
	if p.FirstName != nil {
		dst.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		dst.LastName = *p.LastName
	}
	if p.Phone != nil {
		dst.Phone = *p.Phone
	}
	if p.Position != nil {
		dst.Position = *p.Position
	}
	if p.Bio != nil {
		dst.Bio = *p.Bio
	}
	if p.AvatarRef != nil {
		dst.AvatarRef = *p.AvatarRef
	}
	return dst
}

// Update is a partial write. The store stamps UpdatedAt, and ApprovedAt when
// Status moves to approved.
type Update struct {
	Status *Status
	Patch  ProfilePatch
}

var (
	ErrNotFound      = errors.New("employee: not found")
	ErrAlreadyExists = errors.New("employee: already exists")
	ErrInvalidStatus = errors.New("employee: invalid status")
)
