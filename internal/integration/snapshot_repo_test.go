//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copperexchange/controllers/internal/repository"
)

func TestSnapshotRepository_SaveAndLatest(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresSnapshotRepository(testDB)

	saved := repository.Snapshot{
		ConversionDate:    time.Now().Unix(),
		ConversionRate:    1845.32,
		CurrentCurrency:   "usd",
		NativeCurrency:    "ETH",
		USDConversionRate: floatPtr(1845.32),
	}
	require.NoError(t, repo.Save(ctx, saved))

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, saved.CurrentCurrency, got.CurrentCurrency)
	assert.Equal(t, saved.NativeCurrency, got.NativeCurrency)
	assert.Equal(t, saved.ConversionRate, got.ConversionRate)
	assert.Equal(t, saved.ConversionDate, got.ConversionDate)
	require.NotNil(t, got.USDConversionRate)
	assert.Equal(t, *saved.USDConversionRate, *got.USDConversionRate)
	assert.Empty(t, got.PendingCurrentCurrency)
	assert.Empty(t, got.PendingNativeCurrency)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestSnapshotRepository_LatestOnEmptyTable(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresSnapshotRepository(testDB)

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotRepository_LatestReturnsMostRecent(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresSnapshotRepository(testDB)

	for i, rate := range []float64{100, 200, 300} {
		require.NoError(t, repo.Save(ctx, repository.Snapshot{
			ConversionDate:  time.Now().Unix() + int64(i),
			ConversionRate:  rate,
			CurrentCurrency: "eur",
			NativeCurrency:  "BTC",
		}))
	}

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 300.0, got.ConversionRate)
}

func TestSnapshotRepository_NullableUSDRate(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresSnapshotRepository(testDB)

	require.NoError(t, repo.Save(ctx, repository.Snapshot{
		ConversionDate:  time.Now().Unix(),
		ConversionRate:  42.5,
		CurrentCurrency: "gbp",
		NativeCurrency:  "ETH",
	}))

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.USDConversionRate)
}

func TestSnapshotRepository_PendingFieldsRoundTrip(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)
	repo := repository.NewPostgresSnapshotRepository(testDB)

	require.NoError(t, repo.Save(ctx, repository.Snapshot{
		ConversionDate:         time.Now().Unix(),
		ConversionRate:         12.5,
		CurrentCurrency:        "usd",
		NativeCurrency:         "ETH",
		PendingCurrentCurrency: "cad",
		PendingNativeCurrency:  "xDAI",
	}))

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cad", got.PendingCurrentCurrency)
	assert.Equal(t, "xDAI", got.PendingNativeCurrency)
}

// Migrations use IF NOT EXISTS, so re-running them against an already
// migrated database must be a no-op.
func TestRunMigrations_Idempotent(t *testing.T) {
	resetTestData(t)

	require.NoError(t, repository.RunMigrations(testDB, zap.NewNop().Sugar()))
	require.NoError(t, repository.RunMigrations(testDB, zap.NewNop().Sugar()))
}
