package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {

	require := require.New(t)
	store := openStore(t)
	ctx := context.Background()

	start := time.Date(2022, 4, 19, 2, 0, 0, 0, time.UTC)
	nextCharge := time.Date(2022, 4, 19, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := domain.DispatchRecord{
			Time:          start.Add(time.Duration(i) * 10 * time.Second),
			Regime:        domain.RegimeDischarging,
			Rate:          "Day",
			NextCharge:    nextCharge,
			SystemLoad:    1450,
			Soc:           0.645,
			GridLoad:      1107.7,
			BatteryLoad:   342.3,
			UsingCapacity: 4.45,
			Reserve:       1,
			SetPointWatt:  int16(1100 + i),
			Applied:       true,
		}
		require.NoError(store.Record(ctx, rec))
	}
	require.NoError(store.Record(ctx, domain.DispatchRecord{
		Time:  start.Add(time.Minute),
		Error: "telemetry: timeout",
	}))

	recs, err := store.Recent(ctx, 3)
	require.NoError(err)
	require.Len(recs, 3)

	failed := recs[0]
	assert.Equal(t, "telemetry: timeout", failed.Error)
	assert.Equal(t, domain.RegimeUnknown, failed.Regime)
	assert.True(t, failed.NextCharge.IsZero())
	assert.False(t, failed.Applied)

	latest := recs[1]
	assert.True(t, latest.Time.Equal(start.Add(40*time.Second)))
	assert.Equal(t, domain.RegimeDischarging, latest.Regime)
	assert.Equal(t, "Day", latest.Rate)
	assert.True(t, latest.NextCharge.Equal(nextCharge))
	assert.Equal(t, int16(1104), latest.SetPointWatt)
	assert.Equal(t, 0.645, latest.Soc)
	assert.Equal(t, 1.0, latest.Reserve)
	assert.True(t, latest.Applied)

	assert.Equal(t, int16(1103), recs[2].SetPointWatt)
}

func TestRecentDefaultLimit(t *testing.T) {

	store := openStore(t)
	ctx := context.Background()

	recs, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	for i := 0; i < DefaultRecentLimit+5; i++ {
		require.NoError(t, store.Record(ctx, domain.DispatchRecord{Time: time.Unix(int64(i), 0), Regime: domain.RegimeCharging}))
	}
	recs, err = store.Recent(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, recs, DefaultRecentLimit)
}

func TestReopenKeepsRecords(t *testing.T) {

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), domain.DispatchRecord{Time: time.Unix(1650333600, 0), Regime: domain.RegimeCharging, Rate: "Night"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Night", recs[0].Rate)
}
