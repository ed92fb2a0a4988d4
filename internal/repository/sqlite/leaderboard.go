package sqlite

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/sakif/snippet-share/internal/model"
)

// Leaderboard aggregates snippets per owner: total likes received and number
// of snippets, highest total likes first, at most limit rows.
//
// Owners whose user record no longer exists are dropped by the inner join.
// Public and private snippets both count. Score is left for the caller.
func (db *DB) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	sqlStr, args, err := db.dialect.From(goqu.T("snippets").As("s")).
		InnerJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("s.user_id")))).
		Select(
			goqu.I("u.id"),
			goqu.I("u.name"),
			goqu.I("u.photo"),
			goqu.SUM(goqu.I("s.likes")).As("total_likes"),
			goqu.COUNT("*").As("snippet_count"),
		).
		GroupBy(goqu.I("u.id"), goqu.I("u.name"), goqu.I("u.photo")).
		Order(goqu.I("total_likes").Desc(), goqu.I("snippet_count").Desc(), goqu.I("u.id").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building leaderboard query: %w", err)
	}

	entries := []model.LeaderboardEntry{}
	if err := db.conn.SelectContext(ctx, &entries, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("sqlite: aggregating leaderboard: %w", err)
	}
	return entries, nil
}
