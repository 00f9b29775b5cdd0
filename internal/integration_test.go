package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rack-leasing-backend/config"
	"rack-leasing-backend/internal/db"
	"rack-leasing-backend/internal/lifecycle"
	"rack-leasing-backend/internal/model"
	"rack-leasing-backend/internal/store"
	"rack-leasing-backend/internal/sweeper"
)

type steppingClock struct{ now time.Time }

func (c *steppingClock) Now() time.Time { return c.now }
func (c *steppingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// TestServerLifecycle drives one server from creation to deletion against a
// real database, letting the sweeper perform the paid -> active step.
func TestServerLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	cfg := config.Default()
	cfg.Lifecycle.ExpiryRule = config.ExpiryRuleLapsed

	clock := &steppingClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	appStore := store.NewGormStore(testDB)
	lc, err := lifecycle.NewService(appStore, clock, nil, cfg.Lifecycle)
	require.NoError(t, err)
	sw := sweeper.NewService(cfg, appStore, lc)
	ctx := context.Background()

	rack, err := lc.CreateRack(ctx, 1)
	require.NoError(t, err)

	// --- Add: one slot, one server ---
	clock.Advance(time.Minute)
	server, err := lc.AddServer(ctx, rack)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnpaid, server.Status)

	storedRack, err := appStore.GetRack(ctx, rack.ID)
	require.NoError(t, err)
	assert.True(t, clock.now.Equal(storedRack.UpdatedAt), "adding a server touches the rack")

	_, err = lc.AddServer(ctx, storedRack)
	assert.ErrorIs(t, err, lifecycle.ErrCapacityExceeded)

	// --- Sweep before payment: nothing to do ---
	assert.Empty(t, sw.SweepOnce(ctx))

	// --- Pay ---
	require.NoError(t, lc.Pay(ctx, server, clock.now.Add(30*24*time.Hour)))
	assert.ErrorIs(t, lc.Pay(ctx, server, clock.now.Add(time.Hour)), lifecycle.ErrInvalidStateTransition)

	// Still settling.
	clock.Advance(time.Second)
	assert.Empty(t, sw.SweepOnce(ctx))

	// --- Settled: the sweeper activates it ---
	clock.Advance(time.Minute)
	transitions := sw.SweepOnce(ctx)
	assert.Equal(t, []sweeper.Transition{
		{ServerID: server.ID, From: model.StatusPaid, To: model.StatusActive},
	}, transitions)

	stored, err := appStore.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)

	// --- Lapse: the sweeper demotes it once paid_until has passed ---
	clock.Advance(31 * 24 * time.Hour)
	transitions = sw.SweepOnce(ctx)
	require.Len(t, transitions, 1)
	assert.Equal(t, model.StatusUnpaid, transitions[0].To)

	// --- Delete ---
	stored, err = appStore.GetServer(ctx, server.ID)
	require.NoError(t, err)
	require.NoError(t, lc.Delete(ctx, stored))

	stored, err = appStore.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, stored.Status)
	assert.Empty(t, sw.SweepOnce(ctx), "deleted servers are never swept")

	count, err := appStore.CountServersOwnedBy(ctx, rack.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a deleted server keeps its slot")
}
