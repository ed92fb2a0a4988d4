// Package model defines the data structures used throughout the application.
package model

import "time"

// Roles a user can hold. Admins may bulk-import tags.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Accounts come from two places: email/password registration and GitHub
// OAuth. Email and GitHubID are therefore both optional, but each is UNIQUE
// when present, so they are pointers (NULL in the database).
//
// WHY PasswordHash HAS json:"-"?
// The bcrypt hash must never leave the server. The "-" tag tells
// encoding/json to skip the field entirely, even if someone writes the whole
// User to a response by accident.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        *string   `json:"email"     db:"email"`
	Photo        string    `json:"photo"     db:"photo"`
	Role         string    `json:"role"      db:"role"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserRef is the public profile embedded in snippets and leaderboard rows.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
}
