package engagement

import (
	"context"
	"fmt"
	"sync"

	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Counters persists the derived per-post counters and per-user totals.
// Apply is only ever called for events already in the ledger.
type Counters interface {
	Apply(ctx context.Context, ev *models.EngagementEvent) (models.PostEngagement, error)
	PostEngagement(ctx context.Context, postID string) (models.PostEngagement, error)
	UserTotals(ctx context.Context) ([]models.User, error)
}

// MemoryCounters keeps counters in process
type MemoryCounters struct {
	mu    sync.RWMutex
	posts map[string]*models.PostEngagement
	users map[string]*models.User
	order []string // user ids in first-seen order
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		posts: make(map[string]*models.PostEngagement),
		users: make(map[string]*models.User),
	}
}

func (c *MemoryCounters) Apply(ctx context.Context, ev *models.EngagementEvent) (models.PostEngagement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	post, ok := c.posts[ev.PostID]
	if !ok {
		post = &models.PostEngagement{PostID: ev.PostID}
		c.posts[ev.PostID] = post
	}
	post.Increment(ev.Kind, ev.OccurredAt)

	user, ok := c.users[ev.OwnerID]
	if !ok {
		user = &models.User{ID: ev.OwnerID}
		c.users[ev.OwnerID] = user
		c.order = append(c.order, ev.OwnerID)
	}
	switch ev.Kind {
	case models.KindView:
		user.TotalViews++
	case models.KindShare:
		user.TotalShares++
	case models.KindEndorsement:
		user.TotalEndorsements++
	}
	reached := ev.OccurredAt
	user.ScoreReachedAt = &reached

	return *post, nil
}

func (c *MemoryCounters) PostEngagement(ctx context.Context, postID string) (models.PostEngagement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if post, ok := c.posts[postID]; ok {
		return *post, nil
	}
	return models.PostEngagement{PostID: postID}, nil
}

func (c *MemoryCounters) UserTotals(ctx context.Context) ([]models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make([]models.User, 0, len(c.order))
	for _, id := range c.order {
		users = append(users, *c.users[id])
	}
	return users, nil
}

// GormCounters keeps counters in post_engagements and the users totals columns.
// Increments are single UPDATE col = col + 1 statements.
type GormCounters struct {
	db *gorm.DB
}

func NewGormCounters(db *gorm.DB) *GormCounters {
	return &GormCounters{db: db}
}

func counterColumns(kind models.EventKind) (postCol, userCol string, err error) {
	switch kind {
	case models.KindView:
		return "view_count", "total_views", nil
	case models.KindShare:
		return "share_count", "total_shares", nil
	case models.KindEndorsement:
		return "endorsement_count", "total_endorsements", nil
	}
	return "", "", fmt.Errorf("unknown event kind %q", kind)
}

func (c *GormCounters) Apply(ctx context.Context, ev *models.EngagementEvent) (models.PostEngagement, error) {
	postCol, userCol, err := counterColumns(ev.Kind)
	if err != nil {
		return models.PostEngagement{}, err
	}

	var out models.PostEngagement
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostEngagement{PostID: ev.PostID, LastUpdated: ev.OccurredAt}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PostEngagement{}).
			Where("post_id = ?", ev.PostID).
			UpdateColumns(map[string]interface{}{
				postCol:        gorm.Expr(postCol+" + ?", 1),
				"last_updated": ev.OccurredAt,
			}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.User{ID: ev.OwnerID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", ev.OwnerID).
			UpdateColumns(map[string]interface{}{
				userCol:            gorm.Expr(userCol+" + ?", 1),
				"score_reached_at": ev.OccurredAt,
			}).Error; err != nil {
			return err
		}

		return tx.Where("post_id = ?", ev.PostID).First(&out).Error
	})
	if err != nil {
		return models.PostEngagement{}, fmt.Errorf("%w: apply counters: %v", ledger.ErrUnavailable, err)
	}
	return out, nil
}

func (c *GormCounters) PostEngagement(ctx context.Context, postID string) (models.PostEngagement, error) {
	var rows []models.PostEngagement
	if err := c.db.WithContext(ctx).Where("post_id = ?", postID).Limit(1).Find(&rows).Error; err != nil {
		return models.PostEngagement{}, fmt.Errorf("%w: load engagement: %v", ledger.ErrUnavailable, err)
	}
	if len(rows) == 0 {
		return models.PostEngagement{PostID: postID}, nil
	}
	return rows[0], nil
}

func (c *GormCounters) UserTotals(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.db.WithContext(ctx).
		Where("total_views + total_shares + total_endorsements > 0").
		Order("created_at ASC, id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load user totals: %v", ledger.ErrUnavailable, err)
	}
	return users, nil
}
