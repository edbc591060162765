// internal/domain/completion.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// ClientReport is what the reader submits after finishing a piece of content.
// None of it influences the reward.
type ClientReport struct {
	Rating    int             `json:"rating"`
	Opinion   string          `json:"opinion"`
	TimeSpent int             `json:"time_spent"` // seconds
	Answers   json.RawMessage `json:"answers,omitempty"`
}

// Completion is the immutable proof that a user was rewarded for a content item.
// Its (user_id, content_id) pair is unique.
type Completion struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	ContentID int64           `db:"content_id" json:"content_id"`
	Reward    decimal.Decimal `db:"reward" json:"reward"`
	Rating    int             `db:"rating" json:"rating"`
	Opinion   string          `db:"opinion" json:"opinion"`
	TimeSpent int             `db:"time_spent" json:"time_spent"`
	Answers   types.JSONText  `db:"answers" json:"answers"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NewCompletion builds a completion with the server-side reward.
func NewCompletion(userID, contentID int64, reward decimal.Decimal, report ClientReport) *Completion {
	answers := types.JSONText("null")
	if len(report.Answers) > 0 {
		answers = types.JSONText(report.Answers)
	}
	return &Completion{
		UserID:    userID,
		ContentID: contentID,
		Reward:    reward,
		Rating:    report.Rating,
		Opinion:   report.Opinion,
		TimeSpent: report.TimeSpent,
		Answers:   answers,
		CreatedAt: time.Now().UTC(),
	}
}

// CompletionResult is returned to the reader on a successful completion.
type CompletionResult struct {
	CompletionID int64           `json:"completionId"`
	Reward       decimal.Decimal `json:"reward"`
	NewBalance   decimal.Decimal `json:"newBalance"`
	Stats        *StatsSnapshot  `json:"stats,omitempty"`
}
