package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLite {
	t.Helper()
	j, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.EnsureSchema(context.Background()))
	return j
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite("   ")
	require.Error(t, err)
}

func TestRecordAndEventsFor(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, to := range []string{"starting", "running", "stopped"} {
		require.NoError(t, j.Record(ctx, Event{
			Service:    "ollama",
			FromStatus: "stopped",
			ToStatus:   to,
			PID:        100 + i,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, j.Record(ctx, Event{Service: "other", FromStatus: "stopped", ToStatus: "starting"}))

	events, err := j.EventsFor(ctx, "ollama", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// newest first
	require.Equal(t, "stopped", events[0].ToStatus)
	require.Equal(t, 102, events[0].PID)
	require.Equal(t, "starting", events[2].ToStatus)
	for _, ev := range events {
		require.Equal(t, "ollama", ev.Service)
		require.NotZero(t, ev.ID)
	}
}

func TestEventsForHonorsLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, j.Record(ctx, Event{Service: "svc", FromStatus: "a", ToStatus: "b"}))
	}
	events, err := j.EventsFor(ctx, "svc", 4)
	require.NoError(t, err)
	require.Len(t, events, 4)
}

func TestRecordFillsOccurredAt(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, Event{Service: "svc", FromStatus: "a", ToStatus: "b"}))
	events, err := j.EventsFor(ctx, "svc", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.False(t, events[0].OccurredAt.IsZero())
}

func TestPurgeOlderThan(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, j.Record(ctx, Event{Service: "svc", FromStatus: "a", ToStatus: "b", OccurredAt: old}))
	require.NoError(t, j.Record(ctx, Event{Service: "svc", FromStatus: "b", ToStatus: "c"}))

	n, err := j.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	events, err := j.EventsFor(ctx, "svc", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "c", events[0].ToStatus)
}
