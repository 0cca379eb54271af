package bootstrap

import (
	"context"
	"testing"

	"circle/internal/config"
	"circle/internal/models"
	"circle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDemo_OnlyIntoEmptyDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := &config.Config{Env: "development", UploadDir: t.TempDir(), UploadMaxSizeMB: 1}
	ctx := context.Background()

	require.NoError(t, seedDemo(ctx, cfg, db))
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(demoSeed.NumUsers), users)

	require.NoError(t, seedDemo(ctx, cfg, db))
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(demoSeed.NumUsers), users, "second run is a no-op")
}

func TestSeedDemo_SkippedInProduction(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := &config.Config{Env: "production", UploadDir: t.TempDir()}

	require.NoError(t, seedDemo(context.Background(), cfg, db))
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
