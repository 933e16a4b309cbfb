package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/store"
)

func TestMemStoreCreateAndGet(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()

	sub := &store.Submission{ID: "s1", Owner: "alice", ProblemID: "sum", LangID: "python", Source: "print(1)"}
	require.NoError(t, m.Create(ctx, sub))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, api.StateQueued, got.State)
	require.False(t, got.CreatedAt.IsZero())
	require.Equal(t, "alice", got.Owner)
}

func TestMemStoreDuplicateCreate(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s1"}))
	require.Error(t, m.Create(ctx, &store.Submission{ID: "s1"}))
}

func TestMemStoreGetMissing(t *testing.T) {
	m := store.NewMemStore()
	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemStoreStateTransitions(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s1"}))

	require.NoError(t, m.SetState(ctx, "s1", api.StateCompiling))
	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt, "leaving queued stamps StartedAt")

	require.NoError(t, m.SetState(ctx, "s1", api.StateRunning))
	require.NoError(t, m.Finish(ctx, "s1", api.VerdictAccepted, "", 120, 2048))

	got, err = m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, api.StateFinished, got.State)
	require.Equal(t, api.VerdictAccepted, got.Verdict)
	require.Equal(t, int64(120), got.MaxCpuMillis)
	require.Equal(t, int64(2048), got.MaxMemoryKiB)
	require.NotNil(t, got.FinishedAt)

	// terminal is terminal
	require.Error(t, m.SetState(ctx, "s1", api.StateRunning))
	require.Error(t, m.Finish(ctx, "s1", api.VerdictWrongAnswer, "", 0, 0))
}

func TestMemStoreAppendTestResultReturnsCopies(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s1"}))

	require.NoError(t, m.AppendTestResult(ctx, "s1", api.TestResult{Ordinal: 1, Verdict: api.VerdictAccepted}))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.TestResults, 1)

	got.TestResults[0].Verdict = api.VerdictWrongAnswer
	again, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, api.VerdictAccepted, again.TestResults[0].Verdict)
}

func TestMemStoreListByOwner(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s1", Owner: "alice", CreatedAt: base}))
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s2", Owner: "alice", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s3", Owner: "bob", CreatedAt: base.Add(2 * time.Minute)}))

	subs, err := m.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "s2", subs[0].ID, "newest first")
	require.Equal(t, "s1", subs[1].ID)
}

func TestSubmissionStatus(t *testing.T) {
	m := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, &store.Submission{ID: "s1", Owner: "alice", ProblemID: "sum", LangID: "cpp"}))
	require.NoError(t, m.AppendTestResult(ctx, "s1", api.TestResult{Ordinal: 1, Verdict: api.VerdictAccepted}))
	require.NoError(t, m.Finish(ctx, "s1", api.VerdictAccepted, "", 42, 1024))

	sub, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	status := sub.Status()

	require.Equal(t, "s1", status.ID)
	require.Equal(t, api.StateFinished, status.State)
	require.Equal(t, api.VerdictAccepted, status.Verdict)
	require.Len(t, status.TestResults, 1)
	require.Equal(t, int64(42), status.MaxCpuMillis)
}
