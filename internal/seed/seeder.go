package seed

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/zfogg/showcase/backend/internal/engagement"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var trades = []string{
	"Bathroom tiling", "Gate welding", "Kitchen cabinets", "Roof repair",
	"Wall painting", "Brick paving", "Hair braiding", "Dress tailoring",
}

var platforms = []string{"whatsapp", "whatsapp", "link", "other", ""}

// Catalog stores the generated users and posts
type Catalog interface {
	CreateUser(ctx context.Context, user *models.User) error
	CreatePost(ctx context.Context, post *models.Post) error
}

// GormCatalog writes users and posts to the database
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) CreateUser(ctx context.Context, user *models.User) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error
}

func (c *GormCatalog) CreatePost(ctx context.Context, post *models.Post) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(post).Error
}

// DirectoryCatalog registers users and posts in an in-memory directory
type DirectoryCatalog struct {
	dir *identity.StaticDirectory
}

func NewDirectoryCatalog(dir *identity.StaticDirectory) *DirectoryCatalog {
	return &DirectoryCatalog{dir: dir}
}

func (c *DirectoryCatalog) CreateUser(ctx context.Context, user *models.User) error {
	c.dir.AddUser(user.ID, user.DisplayName)
	return nil
}

func (c *DirectoryCatalog) CreatePost(ctx context.Context, post *models.Post) error {
	c.dir.AddPost(post.ID, post.UserID)
	return nil
}

// Options sizes a seeding run
type Options struct {
	Users        int
	PostsPerUser int
	Views        int
	Shares       int
	Endorsements int
	Seed         uint64 // 0 picks a random seed
}

// DefaultOptions is a small but non-trivial demo dataset
func DefaultOptions() Options {
	return Options{
		Users:        20,
		PostsPerUser: 3,
		Views:        400,
		Shares:       80,
		Endorsements: 40,
	}
}

// Summary reports what a seeding run produced
type Summary struct {
	Users    int
	Posts    int
	Accepted map[models.EventKind]int
	Rejected map[engagement.ReasonCode]int
}

// Seeder creates demo workers and posts, then drives real engagement through
// the service so every counter and ledger row is consistent
type Seeder struct {
	catalog Catalog
	svc     *engagement.Service
}

// NewSeeder creates a new seeder instance
func NewSeeder(catalog Catalog, svc *engagement.Service) *Seeder {
	return &Seeder{catalog: catalog, svc: svc}
}

// Run seeds users, posts and engagement
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Users < 2 {
		return nil, fmt.Errorf("seed needs at least 2 users, got %d", opts.Users)
	}
	if opts.PostsPerUser < 1 {
		return nil, fmt.Errorf("seed needs at least 1 post per user, got %d", opts.PostsPerUser)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	faker := gofakeit.New(seed)

	summary := &Summary{
		Accepted: make(map[models.EventKind]int),
		Rejected: make(map[engagement.ReasonCode]int),
	}

	logger.Log.Info("Creating users...", zap.Int("count", opts.Users), zap.Uint64("seed", seed))
	users, err := s.seedUsers(ctx, faker, opts.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	summary.Users = len(users)

	logger.Log.Info("Creating posts...", zap.Int("per_user", opts.PostsPerUser))
	posts, err := s.seedPosts(ctx, faker, users, opts.PostsPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}
	summary.Posts = len(posts)

	logger.Log.Info("Recording engagement...",
		zap.Int("views", opts.Views),
		zap.Int("shares", opts.Shares),
		zap.Int("endorsements", opts.Endorsements))

	pick := func() (context.Context, string) {
		actor := users[faker.Number(0, len(users)-1)]
		return identity.WithUser(ctx, actor.ID), posts[faker.Number(0, len(posts)-1)].ID
	}

	for i := 0; i < opts.Views; i++ {
		actorCtx, postID := pick()
		actorCtx = identity.WithDevice(actorCtx, faker.UUID())
		if err := tally(summary, models.KindView)(s.svc.TrackView(actorCtx, postID)); err != nil {
			return nil, err
		}
	}
	for i := 0; i < opts.Shares; i++ {
		actorCtx, postID := pick()
		if err := tally(summary, models.KindShare)(s.svc.TrackShare(actorCtx, postID, faker.RandomString(platforms))); err != nil {
			return nil, err
		}
	}
	for i := 0; i < opts.Endorsements; i++ {
		actorCtx, postID := pick()
		if err := tally(summary, models.KindEndorsement)(s.svc.SubmitEndorsement(actorCtx, postID, faker.HipsterSentence())); err != nil {
			return nil, err
		}
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", summary.Users),
		zap.Int("posts", summary.Posts),
		zap.Any("accepted", summary.Accepted),
		zap.Any("rejected", summary.Rejected))
	return summary, nil
}

// tally folds one outcome into summary; rejections are expected and counted
func tally(summary *Summary, kind models.EventKind) func(*engagement.Outcome, error) error {
	return func(outcome *engagement.Outcome, err error) error {
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", kind, err)
		}
		if outcome.Accepted {
			summary.Accepted[kind]++
		} else {
			summary.Rejected[outcome.Rejection.Reason]++
		}
		return nil
	}
}

func (s *Seeder) seedUsers(ctx context.Context, faker *gofakeit.Faker, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		user := models.User{
			ID:          uuid.NewString(),
			DisplayName: faker.Name(),
		}
		if err := s.catalog.CreateUser(ctx, &user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedPosts(ctx context.Context, faker *gofakeit.Faker, users []models.User, perUser int) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(users)*perUser)
	for _, user := range users {
		for i := 0; i < perUser; i++ {
			post := models.Post{
				ID:      uuid.NewString(),
				UserID:  user.ID,
				Caption: fmt.Sprintf("%s in %s", faker.RandomString(trades), faker.City()),
			}
			if err := s.catalog.CreatePost(ctx, &post); err != nil {
				return nil, fmt.Errorf("failed to create post: %w", err)
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}
