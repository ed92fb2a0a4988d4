package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/repository"
)

// MaxTagNameLen keeps tag names short enough to render as chips.
const MaxTagNameLen = 50

// TagService holds the tag business rules.
type TagService struct {
	repo   repository.TagRepository
	logger *slog.Logger
}

// NewTagService creates a TagService.
func NewTagService(repo repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{repo: repo, logger: logger}
}

// Create adds one tag created by userID. A name already in use is an
// apperror.ErrDuplicateKey.
func (s *TagService) Create(ctx context.Context, userID, name string) (*model.Tag, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}

	name, err := validateTagName(name)
	if err != nil {
		return nil, err
	}

	tag := &model.Tag{Name: name, UserID: userID}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	s.logger.Info("tag created", slog.String("id", tag.ID), slog.String("name", name))
	return tag, nil
}

// BulkCreate adds every name or none of them. One invalid or duplicate name
// fails the whole batch.
func (s *TagService) BulkCreate(ctx context.Context, userID string, names []string) ([]*model.Tag, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	if len(names) == 0 {
		return nil, apperror.ValidationFailed("tags", "Please provide an array of tags")
	}

	tags := make([]*model.Tag, 0, len(names))
	for i, raw := range names {
		name, err := validateTagName(raw)
		if err != nil {
			return nil, apperror.ValidationFailed("tags", fmt.Sprintf("tag %d: %s", i+1, err.Error()))
		}
		tags = append(tags, &model.Tag{Name: name, UserID: userID})
	}

	if err := s.repo.CreateTags(ctx, tags); err != nil {
		return nil, fmt.Errorf("bulk creating tags: %w", err)
	}

	s.logger.Info("tags bulk created", slog.Int("count", len(tags)), slog.String("user_id", userID))
	return tags, nil
}

// Get returns the tag with the given ID. A malformed ID is reported as
// apperror.ErrNotFound without touching the store.
func (s *TagService) Get(ctx context.Context, id string) (*model.Tag, error) {
	if _, err := xid.FromString(id); err != nil {
		return nil, apperror.NotFoundMessage("Tag not found")
	}

	tag, err := s.repo.GetTagByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFoundMessage("Tag not found")
	}
	return tag, err
}

// List returns all tags.
func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// Delete removes a tag after checking it exists. Snippets keep their
// reference to it.
func (s *TagService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}

	s.logger.Info("tag deleted", slog.String("id", id))
	return nil
}

func validateTagName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperror.ValidationFailed("name", "Tag name is required")
	}
	if len([]rune(name)) > MaxTagNameLen {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("Tag name must be %d characters or less", MaxTagNameLen))
	}
	return name, nil
}
