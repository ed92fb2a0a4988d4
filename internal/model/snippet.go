// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. Go favours composition over
// inheritance, so a Snippet embeds plain reference structs (TagRef, UserRef)
// instead of pointing at full Tag and User records.
package model

import (
	"slices"
	"time"
)

// DefaultLanguage is stored when a snippet is created without a language.
const DefaultLanguage = "javascript"

// Snippet represents a shared code snippet.
//
// Tags and User are "populated" references: on reads the store fills in the
// display fields (tag name, owner name and photo). On a freshly created
// snippet only the IDs are set.
//
// LikedBy and BookmarkedBy behave as sets: a user ID appears at most once.
// Likes mirrors len(LikedBy) and is only ever changed by ToggleLike.
type Snippet struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Code         string    `json:"code"`
	Language     string    `json:"language"`
	Slug         string    `json:"slug"`
	Likes        int       `json:"likes"`
	LikedBy      []string  `json:"likedBy"`
	BookmarkedBy []string  `json:"bookmarkedBy"`
	IsPublic     bool      `json:"isPublic"`
	Tags         []TagRef  `json:"tags"`
	User         UserRef   `json:"user"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TagRef is the subset of a Tag embedded in a snippet.
type TagRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TagIDs returns the tag identifiers in order.
func (s *Snippet) TagIDs() []string {
	ids := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// LikeAction is the outcome of a like toggle.
type LikeAction string

const (
	Liked   LikeAction = "liked"
	Unliked LikeAction = "unliked"
)

// BookmarkAction is the outcome of a bookmark toggle.
type BookmarkAction string

const (
	Bookmarked   BookmarkAction = "bookmarked"
	Unbookmarked BookmarkAction = "unbookmarked"
)

// ToggleLike flips userID's membership in LikedBy and adjusts Likes by one.
// The change is in memory only; the caller persists the whole engagement state.
func (s *Snippet) ToggleLike(userID string) LikeAction {
	if i := slices.Index(s.LikedBy, userID); i >= 0 {
		s.LikedBy = slices.Delete(s.LikedBy, i, i+1)
		s.Likes--
		return Unliked
	}
	s.LikedBy = append(s.LikedBy, userID)
	s.Likes++
	return Liked
}

// ToggleBookmark flips userID's membership in BookmarkedBy.
func (s *Snippet) ToggleBookmark(userID string) BookmarkAction {
	if i := slices.Index(s.BookmarkedBy, userID); i >= 0 {
		s.BookmarkedBy = slices.Delete(s.BookmarkedBy, i, i+1)
		return Unbookmarked
	}
	s.BookmarkedBy = append(s.BookmarkedBy, userID)
	return Bookmarked
}

// SnippetPage is one page of a paginated snippet listing.
//
// TotalSnippets is counted with the same filter as the page itself, so
// TotalPages is always consistent with what the listing can return.
type SnippetPage struct {
	TotalSnippets int       `json:"totalSnippets"`
	TotalPages    int       `json:"totalPages"`
	CurrentPage   int       `json:"currentPage"`
	Snippets      []Snippet `json:"snippets"`
}
