// Package repository declares the storage interfaces the service layer uses.
//
// Services depend on these interfaces, never on the sqlite package, so tests
// can swap in in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
)

// SnippetRepository is the Snippet Store.
//
// Create must fail with an apperror.ErrDuplicateKey (field "slug") when the
// slug is already taken; the uniqueness constraint lives in the store.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	FindOne(ctx context.Context, filter query.Filter) (*model.Snippet, error)
	Find(ctx context.Context, spec query.Spec) ([]model.Snippet, error)
	Count(ctx context.Context, filter query.Filter) (int, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	SaveEngagement(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// TagRepository is the Tag Store.
type TagRepository interface {
	CreateTag(ctx context.Context, tag *model.Tag) error
	CreateTags(ctx context.Context, tags []*model.Tag) error
	GetTagByID(ctx context.Context, id string) (*model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserRole(ctx context.Context, email, role string) error
}
