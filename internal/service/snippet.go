// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so their tests run
// against in-memory fakes. They know nothing about HTTP: the caller's
// identity arrives as a plain userID argument and failures come back as
// apperror values the handler maps to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
	"github.com/sakif/snippet-share/internal/repository"
	"github.com/sakif/snippet-share/internal/slug"
)

// Validation and sizing constants.
const (
	MinTitleLen       = 3
	MinDescriptionLen = 5
	MinCodeLen        = 10

	// MaxSlugAttempts bounds the generate-then-insert loop when a concurrent
	// create takes the slug between the probe and the insert.
	MaxSlugAttempts = 5

	// PopularPoolFactor is how many pages' worth of top-liked snippets the
	// popular listing samples from.
	PopularPoolFactor = 10

	LeaderboardSize = 100
)

// Messages shared with the HTTP contract.
const (
	msgLoginRequired   = "Unauthorized! Please log in."
	msgSnippetNotFound = "Snippet not found."
	msgInvalidTags     = "Please provide valid tags"
)

// SnippetInput carries the writable snippet fields.
//
// On Create, empty Language becomes model.DefaultLanguage and nil IsPublic
// becomes true. On Update every empty field means "leave unchanged".
type SnippetInput struct {
	Title       string
	Description string
	Code        string
	Language    string
	Tags        []string
	IsPublic    *bool
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Message string           `json:"message"`
	Likes   int              `json:"likes"`
	Action  model.LikeAction `json:"action"`
}

// BookmarkResult is the outcome of a bookmark toggle.
type BookmarkResult struct {
	Message string               `json:"message"`
	Action  model.BookmarkAction `json:"action"`
}

// SnippetService holds the snippet business rules.
type SnippetService struct {
	repo   repository.SnippetRepository
	slugs  *slug.Generator
	logger *slog.Logger
}

// NewSnippetService creates a SnippetService. Slugs are probed against repo.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		slugs:  slug.NewGenerator(repo),
		logger: logger,
	}
}

// Create validates in and stores a new snippet owned by userID.
//
// SLUG ASSIGNMENT:
// The generator probes for a free slug, then the insert runs. Two requests
// with the same title can both see "my-title" as free; the UNIQUE index lets
// exactly one insert win. The loser gets a DuplicateKey on "slug" and loops:
// the next probe sees the winner's row and moves on to "my-title-1".
func (s *SnippetService) Create(ctx context.Context, userID string, in SnippetInput) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}

	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if err := validateCode(in.Code); err != nil {
		return nil, err
	}
	tags, err := validateTags(in.Tags)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Title:       title,
		Description: description,
		Code:        in.Code,
		Language:    strings.TrimSpace(in.Language),
		IsPublic:    in.IsPublic == nil || *in.IsPublic,
		Tags:        tags,
		User:        model.UserRef{ID: userID},
	}
	if snippet.Language == "" {
		snippet.Language = model.DefaultLanguage
	}

	for attempt := 1; ; attempt++ {
		snippet.Slug, err = s.slugs.Generate(ctx, title)
		if err != nil {
			return nil, fmt.Errorf("creating snippet: %w", err)
		}

		err = s.repo.Create(ctx, snippet)
		if err == nil {
			break
		}
		if apperror.IsDuplicateField(err, "slug") && attempt < MaxSlugAttempts {
			s.logger.Warn("slug taken between probe and insert, retrying",
				slog.String("slug", snippet.Slug),
				slog.Int("attempt", attempt),
			)
			continue
		}

		s.logger.Error("failed to create snippet",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("slug", snippet.Slug),
		slog.String("user_id", userID),
	)
	return snippet, nil
}

// GetPublic returns a public snippet. A private or missing snippet is
// apperror.ErrNotFound.
func (s *SnippetService) GetPublic(ctx context.Context, id string) (*model.Snippet, error) {
	return s.repo.FindOne(ctx, query.PublicByID(id))
}

// GetOwned returns a snippet only if userID owns it; otherwise
// apperror.ErrNotFound.
func (s *SnippetService) GetOwned(ctx context.Context, userID, id string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	return s.repo.FindOne(ctx, query.OwnedByID(id, userID))
}

// ListPublic lists public snippets newest first, optionally for one owner.
func (s *SnippetService) ListPublic(ctx context.Context, p query.Params) (*model.SnippetPage, error) {
	return s.page(ctx, query.Public(p))
}

// ListMine lists the caller's own snippets, public and private.
func (s *SnippetService) ListMine(ctx context.Context, userID string, p query.Params) (*model.SnippetPage, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	return s.page(ctx, query.Mine(userID, p))
}

// ListLiked lists the snippets the caller has liked.
func (s *SnippetService) ListLiked(ctx context.Context, userID string, p query.Params) (*model.SnippetPage, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	return s.page(ctx, query.Liked(userID, p))
}

// ListBookmarked lists the snippets the caller has bookmarked.
func (s *SnippetService) ListBookmarked(ctx context.Context, userID string, p query.Params) (*model.SnippetPage, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	return s.page(ctx, query.Bookmarked(userID, p))
}

// ListPopular samples from the most-liked public snippets.
//
// It loads a pool of limit*PopularPoolFactor snippets ordered by likes,
// shuffles it, and returns the window for the requested page. The same page
// requested twice can differ, and pages are not disjoint across requests.
// The total is the full filtered count, not the pool size.
func (s *SnippetService) ListPopular(ctx context.Context, p query.Params) (*model.SnippetPage, error) {
	spec := query.Popular(p)

	pool := spec
	pool.Page = 1
	pool.Limit = spec.Limit * PopularPoolFactor

	candidates, err := s.repo.Find(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("listing popular snippets: %w", err)
	}
	total, err := s.repo.Count(ctx, spec.Filter)
	if err != nil {
		return nil, fmt.Errorf("counting popular snippets: %w", err)
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	start := min(max(spec.Skip(), 0), len(candidates))
	end := min(start+spec.Limit, len(candidates))

	return &model.SnippetPage{
		TotalSnippets: total,
		TotalPages:    spec.TotalPages(total),
		CurrentPage:   spec.Page,
		Snippets:      candidates[start:end],
	}, nil
}

// page runs spec and its count. Both use spec.Filter, so TotalPages always
// describes the listing actually returned.
func (s *SnippetService) page(ctx context.Context, spec query.Spec) (*model.SnippetPage, error) {
	snippets, err := s.repo.Find(ctx, spec)
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	total, err := s.repo.Count(ctx, spec.Filter)
	if err != nil {
		s.logger.Error("failed to count snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting snippets: %w", err)
	}

	return &model.SnippetPage{
		TotalSnippets: total,
		TotalPages:    spec.TotalPages(total),
		CurrentPage:   spec.Page,
		Snippets:      snippets,
	}, nil
}

// Update applies in to a snippet the caller owns.
//
// Empty fields keep the current value. Non-empty fields are validated with
// the same rules as Create. Visibility only ever changes to public here:
// IsPublic == false is treated like an omitted field. The slug never changes.
//
// A snippet that does not exist and one owned by someone else are reported
// the same way: apperror.ErrUnauthorized "Snippet not found.".
func (s *SnippetService) Update(ctx context.Context, userID, id string, in SnippetInput) (*model.Snippet, error) {
	snippet, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Title) != "" {
		if snippet.Title, err = validateTitle(in.Title); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(in.Description) != "" {
		if snippet.Description, err = validateDescription(in.Description); err != nil {
			return nil, err
		}
	}
	if in.Code != "" {
		if err := validateCode(in.Code); err != nil {
			return nil, err
		}
		snippet.Code = in.Code
	}
	if lang := strings.TrimSpace(in.Language); lang != "" {
		snippet.Language = lang
	}
	if len(in.Tags) > 0 {
		if snippet.Tags, err = validateTags(in.Tags); err != nil {
			return nil, err
		}
	}
	if in.IsPublic != nil && *in.IsPublic {
		snippet.IsPublic = true
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", slog.String("id", id), slog.String("user_id", userID))

	// Reload so replaced tags come back with their names.
	return s.repo.GetByID(ctx, id)
}

// Delete removes a snippet the caller owns.
func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting snippet: %w", err)
	}

	s.logger.Info("snippet deleted", slog.String("id", id), slog.String("user_id", userID))
	return nil
}

// ToggleLike likes the snippet for userID, or unlikes it if already liked.
//
// READ-MODIFY-WRITE:
// The whole engagement state is read, flipped in memory and written back.
// Two toggles racing on the same snippet can lose one update; the last
// writer wins. likes stays equal to len(likedBy) because both are written
// together from the same in-memory value.
func (s *SnippetService) ToggleLike(ctx context.Context, userID, id string) (*LikeResult, error) {
	snippet, err := s.engagementTarget(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	action := snippet.ToggleLike(userID)
	if err := s.repo.SaveEngagement(ctx, snippet); err != nil {
		return nil, fmt.Errorf("saving like: %w", err)
	}

	s.logger.Info("snippet "+string(action),
		slog.String("id", id),
		slog.String("user_id", userID),
		slog.Int("likes", snippet.Likes),
	)

	return &LikeResult{
		Message: fmt.Sprintf("Snippet %s successfully", action),
		Likes:   snippet.Likes,
		Action:  action,
	}, nil
}

// ToggleBookmark bookmarks the snippet for userID, or removes the bookmark.
func (s *SnippetService) ToggleBookmark(ctx context.Context, userID, id string) (*BookmarkResult, error) {
	snippet, err := s.engagementTarget(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	action := snippet.ToggleBookmark(userID)
	if err := s.repo.SaveEngagement(ctx, snippet); err != nil {
		return nil, fmt.Errorf("saving bookmark: %w", err)
	}

	s.logger.Info("snippet "+string(action), slog.String("id", id), slog.String("user_id", userID))

	return &BookmarkResult{
		Message: fmt.Sprintf("Snippet %s successfully", action),
		Action:  action,
	}, nil
}

// Leaderboard returns the top contributors by total likes received.
// Entries are ordered by TotalLikes; Score is informational.
func (s *SnippetService) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.repo.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("building leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].ComputeScore()
	}
	return entries, nil
}

// owned loads a snippet for a write by its owner.
func (s *SnippetService) owned(ctx context.Context, userID, id string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}

	snippet, err := s.repo.FindOne(ctx, query.OwnedByID(id, userID))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgSnippetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snippet %s: %w", id, err)
	}
	return snippet, nil
}

// engagementTarget loads any snippet, public or not, for a like or bookmark.
func (s *SnippetService) engagementTarget(ctx context.Context, userID, id string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgSnippetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snippet %s: %w", id, err)
	}
	return snippet, nil
}

// === VALIDATION ===
// Lengths are counted in characters (runes) after trimming whitespace.

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if utf8.RuneCountInString(title) < MinTitleLen {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("Title is required and should be at least %d characters long.", MinTitleLen))
	}
	return title, nil
}

func validateDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if utf8.RuneCountInString(description) < MinDescriptionLen {
		return "", apperror.ValidationFailed("description",
			fmt.Sprintf("Description is required and should be at least %d characters long.", MinDescriptionLen))
	}
	return description, nil
}

// validateCode checks the trimmed length but callers store code untouched;
// indentation is part of the snippet.
func validateCode(code string) error {
	if utf8.RuneCountInString(strings.TrimSpace(code)) < MinCodeLen {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("Code is required and should be at least %d characters long.", MinCodeLen))
	}
	return nil
}

// validateTags requires at least one tag and that every ID is well formed.
// Duplicates are dropped, keeping first-seen order.
func validateTags(ids []string) ([]model.TagRef, error) {
	if len(ids) == 0 {
		return nil, apperror.ValidationFailed("tags", msgInvalidTags)
	}

	refs := make([]model.TagRef, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, err := xid.FromString(id); err != nil {
			return nil, apperror.ValidationFailed("tags", msgInvalidTags)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, model.TagRef{ID: id})
	}
	return refs, nil
}
