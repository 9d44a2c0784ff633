package models

import "time"

// Score weights: an endorsement is a verified trust signal, a share is propagation
const (
	ViewWeight        = 1
	ShareWeight       = 2
	EndorsementWeight = 3
)

// EngagementScore combines raw totals into the reputation score
func EngagementScore(views, shares, endorsements int64) int64 {
	return views*ViewWeight + shares*ShareWeight + endorsements*EndorsementWeight
}

// PostEngagement holds the live counters for one post.
// Only the aggregator writes this table.
type PostEngagement struct {
	PostID           string    `gorm:"primaryKey" json:"post_id"`
	ViewCount        int64     `gorm:"not null;default:0" json:"view_count"`
	ShareCount       int64     `gorm:"not null;default:0" json:"share_count"`
	EndorsementCount int64     `gorm:"not null;default:0" json:"endorsement_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// TableName specifies the table name
func (PostEngagement) TableName() string {
	return "post_engagements"
}

// Increment bumps the counter matching kind
func (p *PostEngagement) Increment(kind EventKind, at time.Time) {
	switch kind {
	case KindView:
		p.ViewCount++
	case KindShare:
		p.ShareCount++
	case KindEndorsement:
		p.EndorsementCount++
	}
	p.LastUpdated = at
}

// Score is the post's contribution to its owner's engagement score
func (p PostEngagement) Score() int64 {
	return EngagementScore(p.ViewCount, p.ShareCount, p.EndorsementCount)
}

// LeaderboardEntry is one ranked user. Derived on every read, never stored.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name,omitempty"`
	EngagementScore int64  `json:"engagement_score"`
	Views           int64  `json:"views"`
	Shares          int64  `json:"shares"`
	Endorsements    int64  `json:"endorsements"`
}
