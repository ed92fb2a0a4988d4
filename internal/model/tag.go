package model

import "time"

// Tag is a label snippets can reference.
//
// UsageCount exists in the schema but nothing increments it.
type Tag struct {
	ID         string    `json:"id"         db:"id"`
	Name       string    `json:"name"       db:"name"`
	UsageCount int       `json:"usageCount" db:"usage_count"`
	UserID     string    `json:"user"       db:"user_id"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
