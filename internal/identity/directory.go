package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zfogg/showcase/backend/internal/models"
	"gorm.io/gorm"
)

// ErrPostNotFound is returned when a post id does not resolve to an owner
var ErrPostNotFound = errors.New("post not found")

// PostDirectory maps posts to the users who own them
type PostDirectory interface {
	OwnerOf(ctx context.Context, postID string) (string, error)
}

// UserDirectory looks up display names for leaderboard rows
type UserDirectory interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// GormDirectory reads posts and users from the app database
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) OwnerOf(ctx context.Context, postID string) (string, error) {
	var post models.Post
	err := d.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", postID).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPostNotFound
		}
		return "", fmt.Errorf("failed to look up post owner: %w", err)
	}
	return post.UserID, nil
}

func (d *GormDirectory) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var users []models.User
	err := d.db.WithContext(ctx).Select("id", "display_name").Where("id IN ?", userIDs).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load display names: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}

// StaticDirectory is an in-memory directory for tests, demos and the memory driver
type StaticDirectory struct {
	mu     sync.RWMutex
	owners map[string]string
	names  map[string]string
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		owners: make(map[string]string),
		names:  make(map[string]string),
	}
}

// AddUser registers a user and its display name
func (d *StaticDirectory) AddUser(userID, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[userID] = displayName
}

// AddPost registers postID as owned by ownerID
func (d *StaticDirectory) AddPost(postID, ownerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[postID] = ownerID
}

func (d *StaticDirectory) OwnerOf(ctx context.Context, postID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[postID]
	if !ok {
		return "", ErrPostNotFound
	}
	return owner, nil
}

func (d *StaticDirectory) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := d.names[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}
