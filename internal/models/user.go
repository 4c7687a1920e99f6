package models

import (
	"strings"
	"time"
)

// DeletedSuffix is appended to the email and username of soft-deleted users
// so the originals can be registered again.
const DeletedSuffix = "::deleted_"

type User struct {
	ID              int64
	Email           string
	Username        string
	PasswordHash    string
	Active          bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time

	Profile *UserProfile
	Roles   []Role
}

// IsVerified reports whether the user has confirmed their email address
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasRole checks the loaded roles of the user
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// IsSuperUser reports whether the user holds the super_user role
func (u *User) IsSuperUser() bool {
	return u.HasRole(RoleSuperUser)
}

// RoleNames returns the names of the loaded roles
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

type UserProfile struct {
	ID                 int64
	UserID             int64
	FirstName          string
	LastName           string
	MiddleName         *string
	MobileNumber       *string
	TelephoneNumber    *string
	Sex                *string
	Birthday           *time.Time
	AddressLine1       *string
	AddressLine2       *string
	AddressLine3       *string
	District           *string
	City               *string
	Province           *string
	PostalCode         *string
	CountryID          *int64
	ProfilePicturePath *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins the first, middle and last names
func (p *UserProfile) FullName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	parts = append(parts, p.LastName)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// UserChanges carries the fields of a partial user update; nil fields are left untouched.
type UserChanges struct {
	Email         *string
	Username      *string
	PasswordHash  *string
	Active        *bool
	EmailVerified *bool
	Roles         []string
	Profile       ProfileChanges
}

// ProfileChanges carries the fields of a partial profile update.
type ProfileChanges struct {
	FirstName          *string
	LastName           *string
	MiddleName         *string
	MobileNumber       *string
	TelephoneNumber    *string
	Sex                *string
	Birthday           *time.Time
	AddressLine1       *string
	AddressLine2       *string
	AddressLine3       *string
	District           *string
	City               *string
	Province           *string
	PostalCode         *string
	CountryID          *int64
	ProfilePicturePath *string
}

// IsEmpty reports whether no profile field is set
func (c ProfileChanges) IsEmpty() bool {
	return c.FirstName == nil && c.LastName == nil && c.MiddleName == nil &&
		c.MobileNumber == nil && c.TelephoneNumber == nil && c.Sex == nil &&
		c.Birthday == nil && c.AddressLine1 == nil && c.AddressLine2 == nil &&
		c.AddressLine3 == nil && c.District == nil && c.City == nil &&
		c.Province == nil && c.PostalCode == nil && c.CountryID == nil &&
		c.ProfilePicturePath == nil
}
