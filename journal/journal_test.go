package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/originbots/tradebot/negotiation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordCountRecent(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"completed", "retry", "completed", "aborted"} {
		require.NoError(t, j.Record(ctx, Entry{
			Offered:    "dino_egg",
			OfferedQty: 3,
			Wanted:     "majestic_chair",
			WantedQty:  1,
			Outcome:    outcome,
			State:      "idle",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}))
	}

	n, err := j.Count(ctx, "completed")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := j.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, all)

	sum, err := j.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"completed": 2, "retry": 1, "aborted": 1}, sum)

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "aborted", recent[0].Outcome)
	assert.Equal(t, "completed", recent[1].Outcome)
	assert.NotEqual(t, uuid.Nil, recent[0].ID)
	assert.True(t, recent[0].FinishedAt.Equal(base.Add(3*time.Minute+30*time.Second)))
}

func TestHookRecordsReports(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)
	id := uuid.New()

	j.Hook()(ctx, negotiation.Report{
		SessionID: id,
		Proposal:  negotiation.Proposal{Offered: "hc_sofa", OfferedQty: 1, Wanted: "cola_machine", WantedQty: 2},
		Result:    negotiation.Result{Outcome: negotiation.Cancelled, State: negotiation.StateCancelled, Reason: "watchdog", Err: errors.New("idle")},
		Started:   time.Now().Add(-time.Minute),
		Finished:  time.Now(),
	})

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, id, recent[0].ID)
	assert.Equal(t, "cancelled", recent[0].Outcome)
	assert.Equal(t, "watchdog: idle", recent[0].Reason)
}
