package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, photo, role, password_hash, github_id, created_at, updated_at`

// CreateUser inserts a new account. A taken email comes back as
// apperror.ErrDuplicateKey with Field "email".
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :name, :email, :photo, :role, :password_hash, :github_id, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		return duplicateOr(err, "user", derefEmail(user.Email), "inserting user")
	}
	return nil
}

// UpsertGitHubUser inserts or refreshes a user keyed by GitHub ID.
//
// Existing users keep their internal ID and role; only the profile fields
// GitHub owns (name, email, photo) are refreshed. On return user holds the
// stored record.
//
// WHY ON CONFLICT ... DO UPDATE AND NOT INSERT OR REPLACE?
// REPLACE deletes the old row and inserts a new one. That would mint a fresh
// ID, orphaning every snippet the user owns.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting github user: missing github id")
	}

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, photo, role, password_hash, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?, ?)
		 ON CONFLICT(github_id) DO UPDATE SET
		     name = excluded.name,
		     email = COALESCE(excluded.email, users.email),
		     photo = excluded.photo,
		     updated_at = excluded.updated_at`,
		xid.New().String(),
		user.Name,
		user.Email,
		user.Photo,
		model.RoleUser,
		*user.GitHubID,
		now,
		now,
	)
	if err != nil {
		return duplicateOr(err, "user", derefEmail(user.Email), "upserting github user")
	}

	var stored model.User
	err = db.conn.GetContext(ctx, &stored,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID)
	if err != nil {
		return fmt.Errorf("sqlite: reloading github user %d: %w", *user.GitHubID, err)
	}
	*user = stored
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
// Returns apperror.ErrNotFound if no user has that email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("user not found with email %s", email))
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// SetUserRole changes the role of the user with the given email.
func (db *DB) SetUserRole(ctx context.Context, email, role string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE email = ?`,
		role, time.Now().UTC(), email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting role for %s: %w", email, err)
	}
	return expectOneRow(result, "user", email)
}

func derefEmail(email *string) string {
	if email == nil {
		return ""
	}
	return *email
}
