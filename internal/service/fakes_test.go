package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory fakes. Each one implements the same interface as
// sqlite.DB, so the services cannot tell the difference. Errors can be
// injected per method to drive failure paths.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSnippetRepo struct {
	mu       sync.Mutex
	snippets map[string]*model.Snippet
	order    []string // insertion order, oldest first
	users    map[string]model.UserRef

	// takenOnCreate makes Create fail with a slug DuplicateKey this many
	// times, simulating a concurrent insert winning the race.
	takenOnCreate int
	createCalls   int

	findErr  error
	countErr error
	saveErr  error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{
		snippets: make(map[string]*model.Snippet),
		users:    make(map[string]model.UserRef),
	}
}

func clone(s *model.Snippet) *model.Snippet {
	c := *s
	c.LikedBy = slices.Clone(s.LikedBy)
	c.BookmarkedBy = slices.Clone(s.BookmarkedBy)
	c.Tags = slices.Clone(s.Tags)
	if c.LikedBy == nil {
		c.LikedBy = []string{}
	}
	if c.BookmarkedBy == nil {
		c.BookmarkedBy = []string{}
	}
	return &c
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.takenOnCreate > 0 {
		f.takenOnCreate--
		// The competing insert now holds the slug.
		rival := &model.Snippet{ID: xid.New().String(), Slug: s.Slug, User: model.UserRef{ID: "rival"}}
		f.snippets[rival.ID] = rival
		f.order = append(f.order, rival.ID)
		return apperror.DuplicateKey("snippet", "slug", s.Slug)
	}
	for _, existing := range f.snippets {
		if existing.Slug == s.Slug {
			return apperror.DuplicateKey("snippet", "slug", s.Slug)
		}
	}

	s.ID = xid.New().String()
	f.snippets[s.ID] = clone(s)
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSnippetRepo) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := f.FindOne(ctx, query.Filter{Predicates: []query.Predicate{{Kind: query.IDEquals, Value: id}}})
	if err != nil {
		return nil, apperror.NotFound("snippet", id)
	}
	return s, nil
}

func (f *fakeSnippetRepo) FindOne(_ context.Context, filter query.Filter) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, id := range f.order {
		if s := f.snippets[id]; matches(s, filter) {
			return f.populated(s), nil
		}
	}
	return nil, apperror.NotFoundMessage("snippet not found")
}

func (f *fakeSnippetRepo) Find(_ context.Context, spec query.Spec) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}

	var all []model.Snippet
	for i := len(f.order) - 1; i >= 0; i-- { // newest first
		if s := f.snippets[f.order[i]]; matches(s, spec.Filter) {
			all = append(all, *f.populated(s))
		}
	}
	if spec.Sort == query.SortMostLiked {
		sort.SliceStable(all, func(i, j int) bool { return all[i].Likes > all[j].Likes })
	}

	start := min(max(spec.Skip(), 0), len(all))
	end := min(start+spec.Limit, len(all))
	return append([]model.Snippet{}, all[start:end]...), nil
}

func (f *fakeSnippetRepo) Count(_ context.Context, filter query.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, s := range f.snippets {
		if matches(s, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.snippets[s.ID]
	if !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	stored.Title = s.Title
	stored.Description = s.Description
	stored.Code = s.Code
	stored.Language = s.Language
	stored.IsPublic = s.IsPublic
	stored.Tags = slices.Clone(s.Tags)
	return nil
}

func (f *fakeSnippetRepo) SaveEngagement(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	stored, ok := f.snippets[s.ID]
	if !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	stored.Likes = s.Likes
	stored.LikedBy = slices.Clone(s.LikedBy)
	stored.BookmarkedBy = slices.Clone(s.BookmarkedBy)
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	f.order = slices.DeleteFunc(f.order, func(s string) bool { return s == id })
	return nil
}

func (f *fakeSnippetRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.snippets {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSnippetRepo) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byOwner := map[string]*model.LeaderboardEntry{}
	for _, s := range f.snippets {
		ref, ok := f.users[s.User.ID]
		if !ok {
			continue
		}
		e, ok := byOwner[ref.ID]
		if !ok {
			e = &model.LeaderboardEntry{ID: ref.ID, Name: ref.Name, Photo: ref.Photo}
			byOwner[ref.ID] = e
		}
		e.TotalLikes += s.Likes
		e.SnippetCount++
	}

	entries := make([]model.LeaderboardEntry, 0, len(byOwner))
	for _, e := range byOwner {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TotalLikes > entries[j].TotalLikes })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// populated mimics the store's read path: owner profile filled in.
func (f *fakeSnippetRepo) populated(s *model.Snippet) *model.Snippet {
	c := clone(s)
	if ref, ok := f.users[s.User.ID]; ok {
		c.User = ref
	}
	return c
}

// matches evaluates a query.Filter the way the SQL adapter does.
func matches(s *model.Snippet, f query.Filter) bool {
	for _, p := range f.Predicates {
		var ok bool
		switch p.Kind {
		case query.IDEquals:
			ok = s.ID == p.Value
		case query.OwnerEquals:
			ok = s.User.ID == p.Value
		case query.PublicOnly:
			ok = s.IsPublic
		case query.TagContains:
			ok = slices.Contains(s.TagIDs(), p.Value)
		case query.LikedBy:
			ok = slices.Contains(s.LikedBy, p.Value)
		case query.BookmarkedBy:
			ok = slices.Contains(s.BookmarkedBy, p.Value)
		case query.TextSearch:
			term := strings.ToLower(p.Value)
			ok = strings.Contains(strings.ToLower(s.Title), term) ||
				strings.Contains(strings.ToLower(s.Description), term)
		default:
			panic(fmt.Sprintf("unsupported predicate %s", p.Kind))
		}
		if !ok {
			return false
		}
	}
	return true
}

type fakeTagRepo struct {
	tags      map[string]*model.Tag
	createErr error
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{tags: make(map[string]*model.Tag)}
}

func (f *fakeTagRepo) nameTaken(name string) bool {
	for _, t := range f.tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (f *fakeTagRepo) CreateTag(_ context.Context, tag *model.Tag) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.nameTaken(tag.Name) {
		return apperror.DuplicateKey("tag", "name", tag.Name)
	}
	tag.ID = xid.New().String()
	c := *tag
	f.tags[tag.ID] = &c
	return nil
}

func (f *fakeTagRepo) CreateTags(ctx context.Context, tags []*model.Tag) error {
	seen := map[string]bool{}
	for _, t := range tags {
		if seen[t.Name] || f.nameTaken(t.Name) {
			return apperror.DuplicateKey("tag", "name", t.Name)
		}
		seen[t.Name] = true
	}
	for _, t := range tags {
		if err := f.CreateTag(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTagRepo) GetTagByID(_ context.Context, id string) (*model.Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, apperror.NotFound("tag", id)
	}
	c := *t
	return &c, nil
}

func (f *fakeTagRepo) ListTags(context.Context) ([]model.Tag, error) {
	out := make([]model.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTagRepo) DeleteTag(_ context.Context, id string) error {
	if _, ok := f.tags[id]; !ok {
		return apperror.NotFound("tag", id)
	}
	delete(f.tags, id)
	return nil
}

type fakeUserRepo struct {
	byID map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	if u.Email != nil {
		if _, err := f.GetUserByEmail(context.Background(), *u.Email); err == nil {
			return apperror.DuplicateKey("user", "email", *u.Email)
		}
	}
	u.ID = xid.New().String()
	c := *u
	f.byID[u.ID] = &c
	return nil
}

func (f *fakeUserRepo) UpsertGitHubUser(_ context.Context, u *model.User) error {
	for _, existing := range f.byID {
		if existing.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			existing.Name = u.Name
			existing.Photo = u.Photo
			if u.Email != nil {
				existing.Email = u.Email
			}
			*u = *existing
			return nil
		}
	}
	u.ID = xid.New().String()
	u.Role = model.RoleUser
	c := *u
	f.byID[u.ID] = &c
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email != nil && *u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (f *fakeUserRepo) SetUserRole(_ context.Context, email, role string) error {
	for _, u := range f.byID {
		if u.Email != nil && *u.Email == email {
			u.Role = role
			return nil
		}
	}
	return apperror.NotFound("user", email)
}
