package entity

import (
	"time"
)

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in Password field, never plain text.
// Email is the identity key and does not change after registration.
type User struct {
	ID        int64
	Email     string
	Password  string
	Name      string
	Age       *int
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the only representation of a user that leaves the service.
type PublicUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Age      *int   `json:"age"`
	Disabled bool   `json:"disabled"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Age:      u.Age,
		Disabled: u.Disabled,
	}
}

// UserUpdate carries a partial profile update; nil fields are left untouched.
type UserUpdate struct {
	Name     *string
	Age      *int
	Disabled *bool
}

// Apply copies the set fields onto u and reports whether anything changed.
func (p UserUpdate) Apply(u *User) bool {
	changed := false
	if p.Name != nil {
		u.Name = *p.Name
		changed = true
	}
	if p.Age != nil {
		age := *p.Age
		u.Age = &age
		changed = true
	}
	if p.Disabled != nil {
		u.Disabled = *p.Disabled
		changed = true
	}
	return changed
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Age != nil {
		age := *u.Age
		c.Age = &age
	}
	return &c
}
