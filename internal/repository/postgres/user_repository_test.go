package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/sakif/flux-server/internal/apperror"
	"github.com/sakif/flux-server/internal/model"
	"github.com/sakif/flux-server/internal/repository"
)

// setupTestDB starts a throwaway PostgreSQL container and returns a migrated
// store. Tests are skipped when no container runtime is reachable.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("flux_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "flux-repository"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate test container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestPostgresUserRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := db.Users()

	t.Run("create and read back", func(t *testing.T) {
		u := &model.User{Username: "alice", Email: "alice@example.com"}
		require.NoError(t, users.Create(ctx, u))
		assert.NotZero(t, u.ID)

		byEmail, err := users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "alice", byEmail.Username)
		assert.Equal(t, int64(0), byEmail.TotalXP)
		assert.Equal(t, int64(0), byEmail.TodayXP)

		byName, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := users.Create(ctx, &model.User{Username: "other", Email: "alice@example.com"})
		assert.Equal(t, apperror.KindEmailExists, apperror.KindOf(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := users.GetByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.ErrorIs(t, users.UpdateUsername(ctx, 987654, "x"), apperror.ErrNotFound)
		assert.ErrorIs(t, users.UpdateXP(ctx, 987654, int64(1), int64(1), time.Now()), apperror.ErrNotFound)
	})

	t.Run("update xp and leaderboard", func(t *testing.T) {
		b := &model.User{Username: "bob", Email: "bob@example.com"}
		require.NoError(t, users.Create(ctx, b))
		a, err := users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)

		require.NoError(t, users.UpdateXP(ctx, a.ID, int64(10), int64(5), time.Now()))
		require.NoError(t, users.UpdateXP(ctx, b.ID, int64(20), int64(9), time.Now()))

		entries, err := users.TopByTodayXP(ctx, repository.LeaderboardLimit)
		require.NoError(t, err)
		assert.Equal(t, []model.LeaderboardEntry{
			{Username: "bob", TotalXP: int64(20), TodayXP: int64(9)},
			{Username: "alice", TotalXP: int64(10), TodayXP: int64(5)},
		}, entries)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithinTx(ctx, func(tx repository.UserRepository) error {
			if err := tx.Create(ctx, &model.User{Username: "tmp", Email: "tmp@example.com"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = users.GetByEmail(ctx, "tmp@example.com")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("migration is idempotent", func(t *testing.T) {
		assert.NoError(t, Migrate(db.pool.Config().ConnConfig))
	})
}
