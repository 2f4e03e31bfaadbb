package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestStartAndFinishRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "etl")
	require.NoError(t, err)
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, s.FinishRun(ctx, run, nil))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "etl", got.Command)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Empty(t, got.Error)
	assert.False(t, got.FinishedAt.IsZero())
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
}

func TestFinishRun_Failed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "create-tables")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, run, errors.New("create table users: permission denied")))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "create table users: permission denied", got.Error)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSteps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "etl")
	require.NoError(t, err)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.RecordStep(ctx, Step{RunID: run.ID, Seq: 2, Kind: "insert", Table: "songplays", Status: StepError, Error: "boom", Duration: 1500 * time.Millisecond, StartedAt: start.Add(time.Minute)}))
	require.NoError(t, s.RecordStep(ctx, Step{RunID: run.ID, Seq: 1, Kind: "copy", Table: "staging_events", Status: StepOK, Duration: 90 * time.Second, StartedAt: start}))

	steps, err := s.Steps(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "staging_events", steps[0].Table)
	assert.Equal(t, 90*time.Second, steps[0].Duration)
	assert.True(t, steps[0].StartedAt.Equal(start))
	assert.Equal(t, "songplays", steps[1].Table)
	assert.Equal(t, "boom", steps[1].Error)
	assert.Equal(t, 1500*time.Millisecond, steps[1].Duration)
}

func TestRecordStep_UnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordStep(context.Background(), Step{RunID: "missing", Seq: 1, Kind: "copy", Table: "x", Status: StepOK, StartedAt: time.Now()})
	assert.Error(t, err, "foreign key should reject steps for unknown runs")
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	s.now = stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var ids []string
	for _, cmd := range []string{"provision", "create-tables", "etl"} {
		run, err := s.StartRun(ctx, cmd)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	run, err := s.StartRun(ctx, "etl")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Zero(t, Run{StartedAt: start}.Duration())
	assert.Equal(t, time.Minute, Run{StartedAt: start, FinishedAt: start.Add(time.Minute)}.Duration())
}
