package model

// SnippetScoreWeight is how many points each authored snippet adds to Score.
const SnippetScoreWeight = 10

// LeaderboardEntry is one user's aggregate engagement.
type LeaderboardEntry struct {
	ID           string `json:"id"           db:"id"`
	Name         string `json:"name"         db:"name"`
	Photo        string `json:"photo"        db:"photo"`
	TotalLikes   int    `json:"totalLikes"   db:"total_likes"`
	SnippetCount int    `json:"snippetCount" db:"snippet_count"`
	Score        int    `json:"score"        db:"-"`
}

// ComputeScore fills Score from TotalLikes and SnippetCount.
func (e *LeaderboardEntry) ComputeScore() {
	e.Score = e.TotalLikes + e.SnippetCount*SnippetScoreWeight
}
