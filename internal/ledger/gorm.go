package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/models"
	"gorm.io/gorm"
)

// GormStore persists the ledger in the engagement_events table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open database. The table must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func (s *GormStore) Append(ctx context.Context, ev *models.EngagementEvent) (string, error) {
	defer metrics.ObserveLedger("append", time.Now())

	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return "", unavailable("append", err)
	}
	return ev.ID, nil
}

func (s *GormStore) QueryByPost(ctx context.Context, postID string) ([]models.EngagementEvent, error) {
	defer metrics.ObserveLedger("query_by_post", time.Now())

	var events []models.EngagementEvent
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, unavailable("query by post", err)
	}
	return events, nil
}

func (s *GormStore) QueryByUser(ctx context.Context, userID string, kind models.EventKind) ([]models.EngagementEvent, error) {
	defer metrics.ObserveLedger("query_by_user", time.Now())

	query := s.db.WithContext(ctx).Where("actor_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var events []models.EngagementEvent
	if err := query.Order("id ASC").Find(&events).Error; err != nil {
		return nil, unavailable("query by user", err)
	}
	return events, nil
}

func (s *GormStore) QueryRecent(ctx context.Context, postID string, since time.Time) ([]models.EngagementEvent, error) {
	defer metrics.ObserveLedger("query_recent", time.Now())

	var events []models.EngagementEvent
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND occurred_at >= ?", postID, since).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, unavailable("query recent", err)
	}
	return events, nil
}

func (s *GormStore) QuerySince(ctx context.Context, since time.Time) ([]models.EngagementEvent, error) {
	defer metrics.ObserveLedger("query_since", time.Now())

	var events []models.EngagementEvent
	err := s.db.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, unavailable("query since", err)
	}
	return events, nil
}

func (s *GormStore) LastEvent(ctx context.Context, userID, postID string, kind models.EventKind) (*models.EngagementEvent, error) {
	defer metrics.ObserveLedger("last_event", time.Now())

	var events []models.EngagementEvent
	err := s.db.WithContext(ctx).
		Where("actor_id = ? AND post_id = ? AND kind = ?", userID, postID, kind).
		Order("occurred_at DESC, id DESC").
		Limit(1).
		Find(&events).Error
	if err != nil {
		return nil, unavailable("last event", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (s *GormStore) CountByUserSince(ctx context.Context, userID string, kind models.EventKind, since time.Time) (int64, error) {
	defer metrics.ObserveLedger("count_by_user", time.Now())

	query := s.db.WithContext(ctx).
		Model(&models.EngagementEvent{}).
		Where("actor_id = ? AND occurred_at >= ?", userID, since)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, unavailable("count by user", err)
	}
	return count, nil
}

func (s *GormStore) PurgeBefore(ctx context.Context, cutoff time.Time, kinds ...models.EventKind) (int64, error) {
	defer metrics.ObserveLedger("purge", time.Now())

	query := s.db.WithContext(ctx).Where("occurred_at < ?", cutoff)
	if len(kinds) > 0 {
		query = query.Where("kind IN ?", kinds)
	}

	result := query.Delete(&models.EngagementEvent{})
	if result.Error != nil {
		return 0, unavailable("purge", result.Error)
	}
	return result.RowsAffected, nil
}
