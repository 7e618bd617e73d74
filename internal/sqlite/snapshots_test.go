package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/models"
	"monitoring-service/internal/store"
)

func TestSnapshotSaveAndGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	snapshots := db.Snapshots()

	_, err := snapshots.Get(ctx, "ozon")
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	snap := models.ActivitySnapshot{
		Source:             "ozon",
		ActiveCountCurrent: 100,
		TotalCountCurrent:  250,
		LastCheckAt:        time.Now(),
		ThresholdPercent:   10.0,
		MonitoringEnabled:  true,
	}
	require.NoError(t, snapshots.Save(ctx, snap))

	loaded, err := snapshots.Get(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(100), loaded.ActiveCountCurrent)
	assert.Equal(t, int64(0), loaded.ActiveCountPrevious)
	assert.True(t, loaded.MonitoringEnabled)
	assert.Nil(t, loaded.NotificationSentAt)
}

func TestSnapshotRollingSlot(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	snapshots := db.Snapshots()

	snap := models.ActivitySnapshot{
		Source:             "wildberries",
		ActiveCountCurrent: 80,
		LastCheckAt:        time.Now(),
		ThresholdPercent:   10.0,
		MonitoringEnabled:  true,
	}
	require.NoError(t, snapshots.Save(ctx, snap))

	// Second check: old current becomes previous, exactly one slot deep.
	snap.ActiveCountPrevious = snap.ActiveCountCurrent
	snap.ActiveCountCurrent = 120
	sentAt := time.Now()
	snap.NotificationSentAt = &sentAt
	require.NoError(t, snapshots.Save(ctx, snap))

	loaded, err := snapshots.Get(ctx, "wildberries")
	require.NoError(t, err)
	assert.Equal(t, int64(120), loaded.ActiveCountCurrent)
	assert.Equal(t, int64(80), loaded.ActiveCountPrevious)
	require.NotNil(t, loaded.NotificationSentAt)

	list, err := snapshots.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestActivityCounts(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	snapshots := db.Snapshots()

	_, err := snapshots.Counts(ctx, "ozon")
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	require.NoError(t, snapshots.SaveCounts(ctx, models.ActivityObservation{
		Source: "ozon", ActiveCount: 60, TotalCount: 200,
	}))
	// Upsert semantics: later reports replace earlier ones.
	require.NoError(t, snapshots.SaveCounts(ctx, models.ActivityObservation{
		Source: "ozon", ActiveCount: 75, TotalCount: 210,
	}))
	require.NoError(t, snapshots.SaveCounts(ctx, models.ActivityObservation{
		Source: "yandex", ActiveCount: 5, TotalCount: 9,
	}))

	obs, err := snapshots.Counts(ctx, "ozon")
	require.NoError(t, err)
	assert.Equal(t, int64(75), obs.ActiveCount)
	assert.Equal(t, int64(210), obs.TotalCount)

	sources, err := snapshots.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ozon", "yandex"}, sources)
}
