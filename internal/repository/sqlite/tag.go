package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/repository"
)

var _ repository.TagRepository = (*DB)(nil)

const insertTag = `INSERT INTO tags (id, name, usage_count, user_id, created_at, updated_at)
	VALUES (:id, :name, :usage_count, :user_id, :created_at, :updated_at)`

// CreateTag inserts a tag. A taken name comes back as apperror.ErrDuplicateKey
// with Field "name".
func (db *DB) CreateTag(ctx context.Context, tag *model.Tag) error {
	stampTag(tag, time.Now().UTC())

	if _, err := db.conn.NamedExecContext(ctx, insertTag, tag); err != nil {
		return duplicateOr(err, "tag", tag.Name, "inserting tag")
	}
	return nil
}

// CreateTags inserts every tag or none of them. The first duplicate name
// rolls the whole batch back.
func (db *DB) CreateTags(ctx context.Context, tags []*model.Tag) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, tag := range tags {
			stampTag(tag, now)
			if _, err := tx.NamedExecContext(ctx, insertTag, tag); err != nil {
				return duplicateOr(err, "tag", tag.Name, "inserting tags")
			}
		}
		return nil
	})
}

// GetTagByID returns apperror.ErrNotFound when no tag has that ID.
func (db *DB) GetTagByID(ctx context.Context, id string) (*model.Tag, error) {
	var t model.Tag
	err := db.conn.GetContext(ctx, &t,
		`SELECT id, name, usage_count, user_id, created_at, updated_at FROM tags WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", id)
		}
		return nil, fmt.Errorf("sqlite: getting tag %s: %w", id, err)
	}
	return &t, nil
}

// ListTags returns every tag, newest first.
func (db *DB) ListTags(ctx context.Context) ([]model.Tag, error) {
	tags := []model.Tag{}
	err := db.conn.SelectContext(ctx, &tags,
		`SELECT id, name, usage_count, user_id, created_at, updated_at
		 FROM tags ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag. Snippets that reference it keep the reference.
func (db *DB) DeleteTag(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting tag %s: %w", id, err)
	}
	return expectOneRow(result, "tag", id)
}

func stampTag(tag *model.Tag, now time.Time) {
	tag.ID = xid.New().String()
	tag.CreatedAt = now
	tag.UpdatedAt = now
}
