package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
	"github.com/sakif/snippet-share/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.SnippetRepository = (*DB)(nil)

// Membership tables. Each holds (snippet_id, <member>, position) rows; position
// keeps the order members were added in.
const (
	tableSnippetTags      = "snippet_tags"
	tableSnippetLikes     = "snippet_likes"
	tableSnippetBookmarks = "snippet_bookmarks"
)

// snippetRow is one row of the snippets table joined with its owner's
// public profile. The owner columns are NULL when the user record is gone.
type snippetRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Code        string         `db:"code"`
	Language    string         `db:"language"`
	Slug        string         `db:"slug"`
	Likes       int            `db:"likes"`
	IsPublic    bool           `db:"is_public"`
	UserID      string         `db:"user_id"`
	OwnerName   sql.NullString `db:"owner_name"`
	OwnerPhoto  sql.NullString `db:"owner_photo"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r snippetRow) toModel() model.Snippet {
	return model.Snippet{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Code:         r.Code,
		Language:     r.Language,
		Slug:         r.Slug,
		Likes:        r.Likes,
		LikedBy:      []string{},
		BookmarkedBy: []string{},
		IsPublic:     r.IsPublic,
		Tags:         []model.TagRef{},
		User: model.UserRef{
			ID:    r.UserID,
			Name:  r.OwnerName.String,
			Photo: r.OwnerPhoto.String,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Create inserts a snippet and its tag references in one transaction.
//
// The caller must have set snippet.Slug. If another snippet already holds
// that slug, the UNIQUE index rejects the insert and Create returns an
// apperror.ErrDuplicateKey with Field "slug"; the service regenerates and
// retries.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now
	if snippet.LikedBy == nil {
		snippet.LikedBy = []string{}
	}
	if snippet.BookmarkedBy == nil {
		snippet.BookmarkedBy = []string{}
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snippets (id, title, description, code, language, slug, likes, is_public, user_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snippet.ID,
			snippet.Title,
			snippet.Description,
			snippet.Code,
			snippet.Language,
			snippet.Slug,
			snippet.Likes,
			snippet.IsPublic,
			snippet.User.ID,
			snippet.CreatedAt,
			snippet.UpdatedAt,
		)
		if err != nil {
			return duplicateOr(err, "snippet", snippet.Slug, "creating snippet")
		}

		return replaceMembers(ctx, tx, tableSnippetTags, "tag_id", snippet.ID, snippet.TagIDs())
	})
}

// GetByID returns the snippet with the given ID, fully populated.
// Returns apperror.ErrNotFound if it does not exist.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := db.FindOne(ctx, query.Filter{Predicates: []query.Predicate{
		{Kind: query.IDEquals, Value: id},
	}})
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound("snippet", id)
	}
	return s, err
}

// FindOne returns the first snippet matching filter.
// Returns apperror.ErrNotFound if nothing matches.
func (db *DB) FindOne(ctx context.Context, filter query.Filter) (*model.Snippet, error) {
	ds, err := db.filtered(db.selectSnippets(), filter)
	if err != nil {
		return nil, err
	}

	sqlStr, args, err := ds.Limit(1).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building snippet query: %w", err)
	}

	var rows []snippetRow
	if err := db.conn.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("sqlite: finding snippet: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFoundMessage("snippet not found")
	}

	snippets, err := db.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &snippets[0], nil
}

// Find returns one page of snippets matching spec.Filter, in spec.Sort order.
//
// OFFSET pagination: the page window is LIMIT spec.Limit OFFSET spec.Skip().
// Simple, but rows inserted between two requests shift later pages.
func (db *DB) Find(ctx context.Context, spec query.Spec) ([]model.Snippet, error) {
	ds, err := db.filtered(db.selectSnippets(), spec.Filter)
	if err != nil {
		return nil, err
	}

	ds = ds.Order(orderFor(spec.Sort)...).
		Limit(uint(spec.Limit)).
		Offset(uint(spec.Skip()))

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building snippet query: %w", err)
	}

	rows := make([]snippetRow, 0, spec.Limit)
	if err := db.conn.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}

	return db.hydrate(ctx, rows)
}

// Count returns how many snippets match filter. Listings pass the same
// filter they page over, so totals and pages always agree.
func (db *DB) Count(ctx context.Context, filter query.Filter) (int, error) {
	ds := db.dialect.From(goqu.T("snippets").As("s")).
		Select(goqu.COUNT("*")).
		Prepared(true)

	ds, err := db.filtered(ds, filter)
	if err != nil {
		return 0, err
	}

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("sqlite: building count query: %w", err)
	}

	var n int
	if err := db.conn.GetContext(ctx, &n, sqlStr, args...); err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return n, nil
}

// Update writes the editable fields (title, description, code, language,
// visibility, tags) back to the database. Slug, likes and membership sets are
// not touched here.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE snippets
			 SET title = ?, description = ?, code = ?, language = ?, is_public = ?, updated_at = ?
			 WHERE id = ?`,
			snippet.Title,
			snippet.Description,
			snippet.Code,
			snippet.Language,
			snippet.IsPublic,
			snippet.UpdatedAt,
			snippet.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
		}
		if err := expectOneRow(result, "snippet", snippet.ID); err != nil {
			return err
		}

		return replaceMembers(ctx, tx, tableSnippetTags, "tag_id", snippet.ID, snippet.TagIDs())
	})
}

// SaveEngagement writes likes, likedBy and bookmarkedBy back as a whole.
//
// This is the write half of a read-modify-write toggle. Two concurrent
// toggles on the same snippet race: the transaction that commits last wins
// and its view of the sets replaces the other's.
func (db *DB) SaveEngagement(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE snippets SET likes = ?, updated_at = ? WHERE id = ?`,
			snippet.Likes,
			snippet.UpdatedAt,
			snippet.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: saving engagement for snippet %s: %w", snippet.ID, err)
		}
		if err := expectOneRow(result, "snippet", snippet.ID); err != nil {
			return err
		}

		if err := replaceMembers(ctx, tx, tableSnippetLikes, "user_id", snippet.ID, snippet.LikedBy); err != nil {
			return err
		}
		return replaceMembers(ctx, tx, tableSnippetBookmarks, "user_id", snippet.ID, snippet.BookmarkedBy)
	})
}

// Delete removes a snippet. Tag, like and bookmark rows go with it
// (ON DELETE CASCADE).
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// SlugExists reports whether any snippet holds slug. It is the probe used by
// the slug generator.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := db.conn.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM snippets WHERE slug = ?)`, slug)
	if err != nil {
		return false, fmt.Errorf("sqlite: probing slug %q: %w", slug, err)
	}
	return exists, nil
}

// selectSnippets is the base SELECT for every snippet read: snippets
// aliased as "s", left-joined to the owner's profile.
func (db *DB) selectSnippets() *goqu.SelectDataset {
	return db.dialect.From(goqu.T("snippets").As("s")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("s.user_id")))).
		Select(
			goqu.I("s.id"),
			goqu.I("s.title"),
			goqu.I("s.description"),
			goqu.I("s.code"),
			goqu.I("s.language"),
			goqu.I("s.slug"),
			goqu.I("s.likes"),
			goqu.I("s.is_public"),
			goqu.I("s.user_id"),
			goqu.I("u.name").As("owner_name"),
			goqu.I("u.photo").As("owner_photo"),
			goqu.I("s.created_at"),
			goqu.I("s.updated_at"),
		).
		Prepared(true)
}

// filtered adds filter's predicates to ds as a WHERE conjunction.
func (db *DB) filtered(ds *goqu.SelectDataset, filter query.Filter) (*goqu.SelectDataset, error) {
	if len(filter.Predicates) == 0 {
		return ds, nil
	}

	exprs := make([]exp.Expression, 0, len(filter.Predicates))
	for _, p := range filter.Predicates {
		e, err := db.predicate(p)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return ds.Where(exprs...), nil
}

// predicate translates one query.Predicate into SQL. This is the only place
// predicate kinds are interpreted.
//
// Membership predicates (tag, liked, bookmarked) are IN subqueries over the
// join tables, so a snippet matches once no matter how many rows it has there.
//
// Text search uses instr() instead of LIKE so that '%' and '_' in the search
// term are matched literally.
func (db *DB) predicate(p query.Predicate) (exp.Expression, error) {
	switch p.Kind {
	case query.IDEquals:
		return goqu.I("s.id").Eq(p.Value), nil
	case query.OwnerEquals:
		return goqu.I("s.user_id").Eq(p.Value), nil
	case query.PublicOnly:
		return goqu.I("s.is_public").IsTrue(), nil
	case query.TagContains:
		return goqu.I("s.id").In(db.membersOf(tableSnippetTags, "tag_id", p.Value)), nil
	case query.LikedBy:
		return goqu.I("s.id").In(db.membersOf(tableSnippetLikes, "user_id", p.Value)), nil
	case query.BookmarkedBy:
		return goqu.I("s.id").In(db.membersOf(tableSnippetBookmarks, "user_id", p.Value)), nil
	case query.TextSearch:
		return goqu.Or(
			goqu.L("instr(lower(s.title), lower(?)) > 0", p.Value),
			goqu.L("instr(lower(s.description), lower(?)) > 0", p.Value),
		), nil
	default:
		return nil, fmt.Errorf("sqlite: unsupported predicate %s", p.Kind)
	}
}

// membersOf selects the snippet IDs whose membership table has value in column.
func (db *DB) membersOf(table, column, value string) *goqu.SelectDataset {
	return db.dialect.From(table).
		Select("snippet_id").
		Where(goqu.C(column).Eq(value))
}

func orderFor(s query.Sort) []exp.OrderedExpression {
	switch s {
	case query.SortMostLiked:
		return []exp.OrderedExpression{
			goqu.I("s.likes").Desc(),
			goqu.I("s.created_at").Desc(),
			goqu.I("s.id").Desc(),
		}
	default:
		// xid IDs are time-ordered, so they break created_at ties
		// in insertion order.
		return []exp.OrderedExpression{
			goqu.I("s.created_at").Desc(),
			goqu.I("s.id").Desc(),
		}
	}
}

// tagRow is a snippet_tags row joined with the tag's name.
type tagRow struct {
	SnippetID string `db:"snippet_id"`
	TagID     string `db:"tag_id"`
	TagName   string `db:"tag_name"`
}

type memberRow struct {
	SnippetID string `db:"snippet_id"`
	UserID    string `db:"user_id"`
}

// hydrate converts rows to models and loads their tags, likes and bookmarks
// with one query per membership table.
//
// Tags are inner-joined: a reference to a deleted tag stays in snippet_tags
// but is left out of the populated snippet.
func (db *DB) hydrate(ctx context.Context, rows []snippetRow) ([]model.Snippet, error) {
	snippets := make([]model.Snippet, len(rows))
	if len(rows) == 0 {
		return snippets, nil
	}

	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		snippets[i] = r.toModel()
		ids[i] = r.ID
		index[r.ID] = i
	}

	tagSQL, tagArgs, err := db.dialect.From(goqu.T(tableSnippetTags).As("st")).
		InnerJoin(goqu.T("tags").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("st.tag_id")))).
		Select(goqu.I("st.snippet_id"), goqu.I("st.tag_id"), goqu.I("t.name").As("tag_name")).
		Where(goqu.I("st.snippet_id").In(ids)).
		Order(goqu.I("st.snippet_id").Asc(), goqu.I("st.position").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building tag query: %w", err)
	}

	var tags []tagRow
	if err := db.conn.SelectContext(ctx, &tags, tagSQL, tagArgs...); err != nil {
		return nil, fmt.Errorf("sqlite: loading snippet tags: %w", err)
	}
	for _, t := range tags {
		s := &snippets[index[t.SnippetID]]
		s.Tags = append(s.Tags, model.TagRef{ID: t.TagID, Name: t.TagName})
	}

	likes, err := db.loadMembers(ctx, tableSnippetLikes, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range likes {
		s := &snippets[index[m.SnippetID]]
		s.LikedBy = append(s.LikedBy, m.UserID)
	}

	bookmarks, err := db.loadMembers(ctx, tableSnippetBookmarks, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range bookmarks {
		s := &snippets[index[m.SnippetID]]
		s.BookmarkedBy = append(s.BookmarkedBy, m.UserID)
	}

	return snippets, nil
}

func (db *DB) loadMembers(ctx context.Context, table string, ids []string) ([]memberRow, error) {
	sqlStr, args, err := db.dialect.From(table).
		Select("snippet_id", "user_id").
		Where(goqu.C("snippet_id").In(ids)).
		Order(goqu.C("snippet_id").Asc(), goqu.C("position").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building %s query: %w", table, err)
	}

	var rows []memberRow
	if err := db.conn.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("sqlite: loading %s: %w", table, err)
	}
	return rows, nil
}

// replaceMembers rewrites all of a snippet's rows in a membership table.
// table and column always come from the constants above, never from input.
func replaceMembers(ctx context.Context, tx *sqlx.Tx, table, column, snippetID string, values []string) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE snippet_id = ?`, table), snippetID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing %s for snippet %s: %w", table, snippetID, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (snippet_id, %s, position) VALUES (?, ?, ?)`, table, column)
	for i, v := range values {
		if _, err := tx.ExecContext(ctx, insert, snippetID, v, i); err != nil {
			return fmt.Errorf("sqlite: writing %s for snippet %s: %w", table, snippetID, err)
		}
	}
	return nil
}

// expectOneRow turns "no rows affected" into apperror.ErrNotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
