// Package query turns listing requests into store-independent query specs.
//
// A Spec is three things:
//   - a Filter: an explicit list of tagged predicates (owner equals, tag
//     contains, text search, ...) that every predicate in the list must satisfy
//   - a Sort order
//   - a page window (Page, Limit, and the derived Skip)
//
// The store adapter evaluates every predicate kind in one place, and count
// queries take the same Filter as the page query, so totals can never drift
// away from what a listing actually returns.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit far inside int64 and SQLite's OFFSET.
	MaxPage = 1_000_000
)

// Kind identifies a predicate.
type Kind int

const (
	// OwnerEquals matches snippets owned by Value.
	OwnerEquals Kind = iota + 1
	// TagContains matches snippets whose tag set contains Value.
	TagContains
	// TextSearch matches snippets whose title OR description contains Value,
	// ignoring case.
	TextSearch
	// PublicOnly matches public snippets. Value is unused.
	PublicOnly
	// LikedBy matches snippets the user Value has liked.
	LikedBy
	// BookmarkedBy matches snippets the user Value has bookmarked.
	BookmarkedBy
	// IDEquals matches the snippet with ID Value.
	IDEquals
)

func (k Kind) String() string {
	switch k {
	case OwnerEquals:
		return "owner-equals"
	case TagContains:
		return "tag-contains"
	case TextSearch:
		return "text-search"
	case PublicOnly:
		return "public-only"
	case LikedBy:
		return "liked-by"
	case BookmarkedBy:
		return "bookmarked-by"
	case IDEquals:
		return "id-equals"
	default:
		return "unknown"
	}
}

// Predicate is one condition of a Filter.
type Predicate struct {
	Kind  Kind
	Value string
}

// Filter is a conjunction of predicates. The zero Filter matches everything.
type Filter struct {
	Predicates []Predicate
}

// And returns a copy of f with p appended.
func (f Filter) And(p Predicate) Filter {
	preds := make([]Predicate, 0, len(f.Predicates)+1)
	preds = append(preds, f.Predicates...)
	return Filter{Predicates: append(preds, p)}
}

// Sort is the order of a listing.
type Sort int

const (
	// SortNewest orders by createdAt descending.
	SortNewest Sort = iota
	// SortMostLiked orders by likes descending.
	SortMostLiked
)

// Params are the recognized listing parameters, already parsed.
type Params struct {
	Page   int
	Limit  int
	UserID string
	TagID  string
	Search string
}

// ParseParams reads page, limit, userId, tagId and search from v.
//
// page and limit fall back to their defaults when missing, not numeric, or
// not positive. page is capped at MaxPage and limit at MaxLimit.
func ParseParams(v url.Values) Params {
	return Params{
		Page:   positiveInt(v.Get("page"), DefaultPage, MaxPage),
		Limit:  positiveInt(v.Get("limit"), DefaultLimit, MaxLimit),
		UserID: strings.TrimSpace(v.Get("userId")),
		TagID:  strings.TrimSpace(v.Get("tagId")),
		Search: strings.TrimSpace(v.Get("search")),
	}
}

func positiveInt(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Spec is a complete listing query.
type Spec struct {
	Filter Filter
	Sort   Sort
	Page   int
	Limit  int
}

// Skip is the number of records before the page window. It is never
// negative.
func (s Spec) Skip() int {
	page := min(max(s.Page, 1), MaxPage)
	return (page - 1) * max(s.Limit, 0)
}

// TotalPages returns ceil(total/limit).
func (s Spec) TotalPages(total int) int {
	if s.Limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(s.Limit)))
}

// Public lists public snippets, optionally restricted to one owner.
func Public(p Params) Spec {
	f := Filter{}.And(Predicate{Kind: PublicOnly})
	if p.UserID != "" {
		f = f.And(Predicate{Kind: OwnerEquals, Value: p.UserID})
	}
	return newSpec(p, refine(f, p), SortNewest)
}

// Mine lists the snippets owned by userID. The userId parameter is ignored.
func Mine(userID string, p Params) Spec {
	f := Filter{}.And(Predicate{Kind: OwnerEquals, Value: userID})
	return newSpec(p, refine(f, p), SortNewest)
}

// Liked lists the snippets userID has liked, whoever owns them.
func Liked(userID string, p Params) Spec {
	f := Filter{}.And(Predicate{Kind: LikedBy, Value: userID})
	return newSpec(p, refine(f, p), SortNewest)
}

// Bookmarked lists the snippets userID has bookmarked.
func Bookmarked(userID string, p Params) Spec {
	f := Filter{}.And(Predicate{Kind: BookmarkedBy, Value: userID})
	return newSpec(p, refine(f, p), SortNewest)
}

// Popular lists public snippets by likes. The owner filter does not apply.
func Popular(p Params) Spec {
	f := Filter{}.And(Predicate{Kind: PublicOnly})
	return newSpec(p, refine(f, p), SortMostLiked)
}

// PublicByID matches one snippet if it is public.
func PublicByID(id string) Filter {
	return Filter{Predicates: []Predicate{
		{Kind: IDEquals, Value: id},
		{Kind: PublicOnly},
	}}
}

// OwnedByID matches one snippet if userID owns it.
func OwnedByID(id, userID string) Filter {
	return Filter{Predicates: []Predicate{
		{Kind: IDEquals, Value: id},
		{Kind: OwnerEquals, Value: userID},
	}}
}

// refine adds the tag and search predicates shared by every listing.
func refine(f Filter, p Params) Filter {
	if p.TagID != "" {
		f = f.And(Predicate{Kind: TagContains, Value: p.TagID})
	}
	if p.Search != "" {
		f = f.And(Predicate{Kind: TextSearch, Value: p.Search})
	}
	return f
}

func newSpec(p Params, f Filter, sort Sort) Spec {
	page, limit := min(p.Page, MaxPage), p.Limit
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Spec{Filter: f, Sort: sort, Page: page, Limit: limit}
}
