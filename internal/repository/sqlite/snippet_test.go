package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only during the test.
// Each test gets its own database and it is destroyed when the connection closes.
//
// t.Helper() makes failures point at the caller's line, not at this function.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type snippetOpt func(*model.Snippet)

func private() snippetOpt { return func(s *model.Snippet) { s.IsPublic = false } }

func withTags(ids ...string) snippetOpt {
	return func(s *model.Snippet) {
		for _, id := range ids {
			s.Tags = append(s.Tags, model.TagRef{ID: id})
		}
	}
}

func withDescription(d string) snippetOpt {
	return func(s *model.Snippet) { s.Description = d }
}

func withLikes(n int) snippetOpt { return func(s *model.Snippet) { s.Likes = n } }

// createTestSnippet inserts a public snippet owned by owner and fails the test on error.
func createTestSnippet(t *testing.T, db *DB, owner, title string, opts ...snippetOpt) *model.Snippet {
	t.Helper()
	s := &model.Snippet{
		Title:       title,
		Description: "a test snippet",
		Code:        "console.log('hello')",
		Language:    model.DefaultLanguage,
		Slug:        fmt.Sprintf("%s-%s", title, owner),
		IsPublic:    true,
		User:        model.UserRef{ID: owner},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return s
}

// createTestTag inserts a tag and returns its ID.
func createTestTag(t *testing.T, db *DB, name string) string {
	t.Helper()
	tag := &model.Tag{Name: name, UserID: "u1"}
	if err := db.CreateTag(context.Background(), tag); err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag.ID
}

func spec(f query.Filter) query.Spec {
	return query.Spec{Filter: f, Page: 1, Limit: 100}
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	s := createTestSnippet(t, db, "u1", "hello")

	if s.ID == "" {
		t.Error("Create() did not set ID")
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	t1, t2 := createTestTag(t, db, "one"), createTestTag(t, db, "two")
	created := createTestSnippet(t, db, "u1", "round", withTags(t1, t2))

	found, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Title != "round" || found.Code != created.Code || found.Slug != created.Slug {
		t.Errorf("GetByID() = %+v, want fields of %+v", found, created)
	}
	if !found.IsPublic {
		t.Error("IsPublic = false, want true")
	}
	if found.User.ID != "u1" {
		t.Errorf("User.ID = %q, want u1", found.User.ID)
	}
	if len(found.Tags) != 2 || found.Tags[0].ID != t1 || found.Tags[1].ID != t2 {
		t.Errorf("Tags = %+v, want [one two] in order", found.Tags)
	}
	if found.Tags[0].Name != "one" {
		t.Errorf("Tags[0].Name = %q, want one", found.Tags[0].Name)
	}
	if found.LikedBy == nil || found.BookmarkedBy == nil {
		t.Error("membership sets should be empty, not nil")
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	first := createTestSnippet(t, db, "u1", "dup")

	second := &model.Snippet{
		Title: "dup", Description: "another", Code: "x", Language: "go",
		Slug: first.Slug, User: model.UserRef{ID: "u2"},
	}
	err := db.Create(context.Background(), second)

	if !errors.Is(err, apperror.ErrDuplicateKey) {
		t.Fatalf("Create() error = %v, want ErrDuplicateKey", err)
	}
	if !apperror.IsDuplicateField(err, "slug") {
		t.Errorf("Create() error field should be slug, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_PopulatesOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Name: "Ada", Photo: "ada.png"}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	s := createTestSnippet(t, db, u.ID, "owned")

	found, err := db.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.User.Name != "Ada" || found.User.Photo != "ada.png" {
		t.Errorf("User = %+v, want name and photo populated", found.User)
	}
}

func TestGetByID_DeletedTagIsDropped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tag := &model.Tag{Name: "go", UserID: "u1"}
	if err := db.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	s := createTestSnippet(t, db, "u1", "tagged", withTags(tag.ID))

	found, _ := db.GetByID(ctx, s.ID)
	if found.Tags[0].Name != "go" {
		t.Errorf("tag name = %q, want go", found.Tags[0].Name)
	}

	if err := db.DeleteTag(ctx, tag.ID); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}

	found, _ = db.GetByID(ctx, s.ID)
	if len(found.Tags) != 0 {
		t.Errorf("Tags = %+v, want deleted tag left out", found.Tags)
	}

	// The reference itself is not cascaded away.
	n, err := db.Count(ctx, query.Filter{}.And(query.Predicate{Kind: query.TagContains, Value: tag.ID}))
	if err != nil || n != 1 {
		t.Errorf("Count(tag) = %d (err %v), want 1", n, err)
	}
}

// =========================================================================
// FIND / COUNT
// =========================================================================

func TestFindOne_PublicByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	pub := createTestSnippet(t, db, "u1", "pub")
	priv := createTestSnippet(t, db, "u1", "priv", private())

	if _, err := db.FindOne(ctx, query.PublicByID(pub.ID)); err != nil {
		t.Errorf("FindOne(public) error = %v", err)
	}
	if _, err := db.FindOne(ctx, query.PublicByID(priv.ID)); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindOne(private) error = %v, want ErrNotFound", err)
	}
}

func TestFindOne_OwnedByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "owner", "mine", private())

	if _, err := db.FindOne(ctx, query.OwnedByID(s.ID, "owner")); err != nil {
		t.Errorf("FindOne(owner) error = %v", err)
	}
	if _, err := db.FindOne(ctx, query.OwnedByID(s.ID, "intruder")); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindOne(intruder) error = %v, want ErrNotFound", err)
	}
}

func TestFind_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	createTestSnippet(t, db, "u1", "first")
	createTestSnippet(t, db, "u1", "second")
	createTestSnippet(t, db, "u1", "third")

	got, err := db.Find(context.Background(), spec(query.Filter{}))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	want := []string{"third", "second", "first"}
	if len(got) != len(want) {
		t.Fatalf("Find() returned %d snippets, want %d", len(got), len(want))
	}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("Find()[%d] = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestFind_MostLiked(t *testing.T) {
	db := newTestDB(t)
	createTestSnippet(t, db, "u1", "meh", withLikes(1))
	createTestSnippet(t, db, "u1", "hit", withLikes(9))
	createTestSnippet(t, db, "u1", "ok", withLikes(4))

	s := spec(query.Filter{})
	s.Sort = query.SortMostLiked
	got, err := db.Find(context.Background(), s)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	if got[0].Title != "hit" || got[1].Title != "ok" || got[2].Title != "meh" {
		t.Errorf("Find() order = %s, %s, %s; want hit, ok, meh", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestFind_Pagination(t *testing.T) {
	db := newTestDB(t)
	for i := range 5 {
		createTestSnippet(t, db, "u1", fmt.Sprintf("s%d", i))
	}

	tests := []struct {
		page, want int
	}{
		{1, 2},
		{2, 2},
		{3, 1},
		{4, 0},
	}
	for _, tt := range tests {
		got, err := db.Find(context.Background(), query.Spec{Page: tt.page, Limit: 2})
		if err != nil {
			t.Fatalf("Find(page %d) error = %v", tt.page, err)
		}
		if len(got) != tt.want {
			t.Errorf("page %d: got %d items, want %d", tt.page, len(got), tt.want)
		}
	}
}

func TestFind_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := createTestSnippet(t, db, "alice", "Sorting in Go", withTags("algo"))
	b := createTestSnippet(t, db, "alice", "Hash maps", withDescription("fast SORTED lookups"), private())
	c := createTestSnippet(t, db, "bob", "Binary search", withTags("algo", "search"))

	// bob likes a, alice bookmarks c
	a.LikedBy, a.Likes = []string{"bob"}, 1
	if err := db.SaveEngagement(ctx, a); err != nil {
		t.Fatalf("SaveEngagement() error = %v", err)
	}
	c.BookmarkedBy = []string{"alice"}
	if err := db.SaveEngagement(ctx, c); err != nil {
		t.Fatalf("SaveEngagement() error = %v", err)
	}

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"public", query.Filter{}.And(query.Predicate{Kind: query.PublicOnly}), []string{c.ID, a.ID}},
		{"owner", query.Filter{}.And(query.Predicate{Kind: query.OwnerEquals, Value: "alice"}), []string{b.ID, a.ID}},
		{"tag", query.Filter{}.And(query.Predicate{Kind: query.TagContains, Value: "algo"}), []string{c.ID, a.ID}},
		{"search title or description, any case", query.Filter{}.And(query.Predicate{Kind: query.TextSearch, Value: "sort"}), []string{b.ID, a.ID}},
		{"search is literal", query.Filter{}.And(query.Predicate{Kind: query.TextSearch, Value: "%"}), nil},
		{"liked by", query.Filter{}.And(query.Predicate{Kind: query.LikedBy, Value: "bob"}), []string{a.ID}},
		{"bookmarked by", query.Filter{}.And(query.Predicate{Kind: query.BookmarkedBy, Value: "alice"}), []string{c.ID}},
		{
			"conjunction",
			query.Filter{}.
				And(query.Predicate{Kind: query.PublicOnly}).
				And(query.Predicate{Kind: query.OwnerEquals, Value: "alice"}).
				And(query.Predicate{Kind: query.TextSearch, Value: "sort"}),
			[]string{a.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Find(ctx, spec(tt.filter))
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Find() returned %d snippets, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("Find()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}

			n, err := db.Count(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("Count() = %d, want %d", n, len(tt.want))
			}
		})
	}
}

// =========================================================================
// UPDATE / ENGAGEMENT / DELETE
// =========================================================================

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t1, t2, t3 := createTestTag(t, db, "one"), createTestTag(t, db, "two"), createTestTag(t, db, "three")
	s := createTestSnippet(t, db, "u1", "before", withTags(t1))

	s.Title = "after"
	s.Language = "go"
	s.IsPublic = false
	s.Tags = []model.TagRef{{ID: t2}, {ID: t3}}
	if err := db.Update(ctx, s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, _ := db.GetByID(ctx, s.ID)
	if found.Title != "after" || found.Language != "go" || found.IsPublic {
		t.Errorf("GetByID() after Update = %+v", found)
	}
	if found.Slug != s.Slug {
		t.Errorf("Slug changed to %q, want %q", found.Slug, s.Slug)
	}
	if len(found.Tags) != 2 || found.Tags[0].ID != t2 || found.Tags[1].ID != t3 {
		t.Errorf("Tags = %+v, want [two three]", found.Tags)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.Snippet{ID: "ghost", Title: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSaveEngagement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "u1", "liked")

	s.ToggleLike("u2")
	s.ToggleLike("u3")
	s.ToggleBookmark("u2")
	if err := db.SaveEngagement(ctx, s); err != nil {
		t.Fatalf("SaveEngagement() error = %v", err)
	}

	found, _ := db.GetByID(ctx, s.ID)
	if found.Likes != 2 {
		t.Errorf("Likes = %d, want 2", found.Likes)
	}
	if len(found.LikedBy) != 2 || found.LikedBy[0] != "u2" || found.LikedBy[1] != "u3" {
		t.Errorf("LikedBy = %v, want [u2 u3]", found.LikedBy)
	}
	if len(found.BookmarkedBy) != 1 || found.BookmarkedBy[0] != "u2" {
		t.Errorf("BookmarkedBy = %v, want [u2]", found.BookmarkedBy)
	}

	// Unlike persists as a removal, not an append.
	found.ToggleLike("u2")
	if err := db.SaveEngagement(ctx, found); err != nil {
		t.Fatalf("SaveEngagement() error = %v", err)
	}
	again, _ := db.GetByID(ctx, s.ID)
	if again.Likes != 1 || len(again.LikedBy) != 1 || again.LikedBy[0] != "u3" {
		t.Errorf("after unlike: Likes = %d, LikedBy = %v", again.Likes, again.LikedBy)
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "u1", "doomed", withTags("t1"))
	s.ToggleLike("u2")
	if err := db.SaveEngagement(ctx, s); err != nil {
		t.Fatalf("SaveEngagement() error = %v", err)
	}

	if err := db.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := db.GetByID(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after Delete error = %v, want ErrNotFound", err)
	}

	// Membership rows are gone too.
	n, err := db.Count(ctx, query.Filter{}.And(query.Predicate{Kind: query.LikedBy, Value: "u2"}))
	if err != nil || n != 0 {
		t.Errorf("liked count after Delete = %d (err %v), want 0", n, err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.Delete(context.Background(), "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSlugExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "u1", "probe")

	exists, err := db.SlugExists(ctx, s.Slug)
	if err != nil || !exists {
		t.Errorf("SlugExists(%q) = %v, %v; want true", s.Slug, exists, err)
	}
	exists, err = db.SlugExists(ctx, s.Slug+"-1")
	if err != nil || exists {
		t.Errorf("SlugExists(free) = %v, %v; want false", exists, err)
	}
}
