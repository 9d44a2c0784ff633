package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/fanout"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/models"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", os.DevNull)
	os.Exit(m.Run())
}

func testConfig(driver string, t *testing.T) *config.Config {
	return &config.Config{
		Environment: "test",
		StoreDriver: driver,
		SQLitePath:  filepath.Join(t.TempDir(), "container.db"),
		Engagement:  config.DefaultEngagement(),
	}
}

func TestBuildMemory(t *testing.T) {
	c, err := Build(testConfig(config.DriverMemory, t))
	require.NoError(t, err)
	defer c.Cleanup(context.Background())

	assert.Nil(t, c.DB())
	assert.Nil(t, c.Cache())
	require.NotNil(t, c.StaticDirectory())

	c.StaticDirectory().AddUser("owner", "Owner")
	c.StaticDirectory().AddPost("P", "owner")

	updates := make(chan fanout.Update, 1)
	c.Service().Subscribe(func(u fanout.Update) { updates <- u })

	out, err := c.Service().TrackView(identity.WithUser(context.Background(), "viewer"), "P")
	require.NoError(t, err)
	require.True(t, out.Accepted)

	select {
	case u := <-updates:
		assert.Equal(t, out.EventID, u.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	entries, err := c.Ranker().Rank(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Owner", entries[0].DisplayName)
}

func TestBuildSQLite(t *testing.T) {
	c, err := Build(testConfig(config.DriverSQLite, t))
	require.NoError(t, err)

	db := c.DB()
	require.NotNil(t, db)
	assert.Nil(t, c.StaticDirectory())
	require.NoError(t, db.Create(&models.Post{ID: "P", UserID: "owner"}).Error)

	out, err := c.Service().TrackShare(identity.WithUser(context.Background(), "fan"), "P", "link")
	require.NoError(t, err)
	assert.True(t, out.Accepted)

	events, err := c.Ledger().QueryByPost(context.Background(), "P")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.NoError(t, c.Cleanup(context.Background()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "cleanup closes the database")
}

func TestBuildRejectsBadDatabaseConfig(t *testing.T) {
	_, err := Build(testConfig(config.DriverPostgres, t))
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	c := New(testConfig(config.DriverMemory, t))

	var order []int
	c.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	c.OnCleanup(func(context.Context) error { order = append(order, 2); return errors.New("boom") })
	c.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := c.Cleanup(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{3, 2, 1}, order)

	require.NoError(t, c.Cleanup(context.Background()), "cleanup runs once")
	assert.Len(t, order, 3)
}

func TestValidateListsMissingDependencies(t *testing.T) {
	err := New(testConfig(config.DriverMemory, t)).Validate()

	var missing *MissingDependenciesError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Deps, "ledger store")
	assert.Contains(t, missing.Deps, "engagement service")
	assert.Contains(t, err.Error(), "missing ledger store")
}
