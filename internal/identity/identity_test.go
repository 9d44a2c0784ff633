package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserID(ctx))
	assert.Empty(t, DeviceFingerprint(ctx))

	ctx = WithDevice(WithUser(ctx, "user-1"), "fp-abc")
	assert.Equal(t, "user-1", UserID(ctx))
	assert.Equal(t, "fp-abc", DeviceFingerprint(ctx))
}

func TestToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "user-42", time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestToken_Rejections(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := IssueToken(secret, "user-42", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.Error(t, err)

	valid, err := IssueToken(secret, "user-42", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken([]byte("other-secret"), valid)
	assert.Error(t, err)

	_, err = ParseToken(secret, "invalid.jwt.token")
	assert.Error(t, err)
}

func TestStaticDirectory(t *testing.T) {
	dir := NewStaticDirectory()
	dir.AddUser("u1", "Amaka")
	dir.AddPost("p1", "u1")

	owner, err := dir.OwnerOf(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	_, err = dir.OwnerOf(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)

	names, err := dir.DisplayNames(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Amaka"}, names)
}

func TestGormDirectory(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	require.NoError(t, db.Create(&models.User{ID: "u1", DisplayName: "Tunde"}).Error)
	require.NoError(t, db.Create(&models.Post{ID: "p1", UserID: "u1", Caption: "tiled bathroom"}).Error)

	dir := NewGormDirectory(db)
	owner, err := dir.OwnerOf(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	_, err = dir.OwnerOf(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPostNotFound)

	names, err := dir.DisplayNames(context.Background(), []string{"u1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, "Tunde", names["u1"])
	assert.NotContains(t, names, "ghost")
}
