package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a worker profile. The account system owns everything except the
// engagement totals, which the aggregator folds in from every accepted event.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	DisplayName string `json:"display_name"`

	// Cumulative totals across all of this user's posts
	TotalViews        int64 `gorm:"not null;default:0" json:"total_views"`
	TotalShares       int64 `gorm:"not null;default:0" json:"total_shares"`
	TotalEndorsements int64 `gorm:"not null;default:0" json:"total_endorsements"`

	// When the current score was reached; earlier wins leaderboard ties
	ScoreReachedAt *time.Time `gorm:"index" json:"score_reached_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Score returns the user's engagement score
func (u User) Score() int64 {
	return EngagementScore(u.TotalViews, u.TotalShares, u.TotalEndorsements)
}

// Post is a showcased piece of work. Its engagement lives in PostEngagement.
type Post struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Caption   string    `gorm:"type:text" json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}
