package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/compile"
	"github.com/spectrumoj/judge/internal/cooldown"
	"github.com/spectrumoj/judge/internal/events"
	"github.com/spectrumoj/judge/internal/generator"
	"github.com/spectrumoj/judge/internal/judge"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/queue"
	"github.com/spectrumoj/judge/internal/sandbox"
	"github.com/spectrumoj/judge/internal/service"
	"github.com/spectrumoj/judge/internal/store"
)

type fixture struct {
	svc   *service.Service
	store *store.MemStore
	queue *queue.Queue
	fake  *sandbox.Fake
	src   *problems.InMemSource
}

func newFixture(t *testing.T, fake *sandbox.Fake) *fixture {
	return newFixtureWithQueue(t, fake, 64)
}

func newFixtureWithQueue(t *testing.T, fake *sandbox.Fake, queueSize int) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemStore()
	src := problems.NewInMemSource()
	q := queue.New(queueSize, logger)
	compiler := compile.New(fake, logger)
	registry := langs.Default()
	engine := judge.NewEngine(fake, compiler, registry, st, events.Nop{}, logger)
	gen := generator.New(fake, compiler, registry, logger)
	svc := service.New(st, src, q, engine, gen, cooldown.NewGuard(), logger)

	return &fixture{svc: svc, store: st, queue: q, fake: fake, src: src}
}

func (f *fixture) registerProblem(t *testing.T, mutate func(*problems.Problem)) {
	t.Helper()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "1.in")
	ansPath := filepath.Join(dir, "1.ans")
	require.NoError(t, os.WriteFile(inPath, []byte("1\n"), 0644))
	require.NoError(t, os.WriteFile(ansPath, []byte("1\n"), 0644))

	prob := &problems.Problem{
		ID:     "sum",
		Limits: problems.Limits{CpuSec: 1.0, MemoryKiB: 65536},
		Tests:  []problems.TestCase{{Ordinal: 1, InputPath: inPath, AnswerPath: ansPath}},
	}
	if mutate != nil {
		mutate(prob)
	}
	f.src.Register(prob)
}

func TestSubmitEnqueues(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, nil)

	id, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, f.queue.Pending())

	status, err := f.svc.GetStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, api.StateQueued, status.State)
}

func TestSubmitUnknownProblem(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	_, err := f.svc.Submit(context.Background(), "alice", "nope", "python", "print(1)")
	require.Error(t, err)
}

func TestSubmitDisallowedLanguage(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, func(p *problems.Problem) {
		p.AllowedLangIDs = mapset.NewSet("cpp")
	})

	_, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.ErrorIs(t, err, service.ErrUnsupportedLanguage)
}

func TestSubmitCooldown(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, func(p *problems.Problem) {
		p.SubmitCooldown = time.Hour
	})

	_, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), "alice", "sum", "python", "print(2)")
	var cdErr *service.CooldownError
	require.ErrorAs(t, err, &cdErr)
	require.Greater(t, cdErr.RetryAfter, time.Duration(0))

	// another user is not throttled
	_, err = f.svc.Submit(context.Background(), "bob", "sum", "python", "print(1)")
	require.NoError(t, err)
}

func TestSubmitQueueFullReturnsCooldownWindow(t *testing.T) {
	f := newFixtureWithQueue(t, &sandbox.Fake{}, 1)
	f.registerProblem(t, func(p *problems.Problem) {
		p.SubmitCooldown = time.Hour
	})
	require.NoError(t, f.queue.Enqueue("filler"))

	_, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.Error(t, err)
	var cdErr *service.CooldownError
	require.False(t, errors.As(err, &cdErr), "a full queue is not a cooldown")

	// the rejection must not burn the user's window; the retry fails on the
	// queue again, not on cooldown
	_, err = f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.Error(t, err)
	require.False(t, errors.As(err, &cdErr))
}

func TestProcessJudgesSubmission(t *testing.T) {
	fake := &sandbox.Fake{Handler: func(req sandbox.RunRequest) sandbox.RunResult {
		return sandbox.OkRun(string(req.Stdin), "")
	}}
	f := newFixture(t, fake)
	f.registerProblem(t, nil)

	id, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(input())")
	require.NoError(t, err)

	require.NoError(t, f.svc.Process(context.Background(), id))

	status, err := f.svc.GetStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, api.StateFinished, status.State)
	require.Equal(t, api.VerdictAccepted, status.Verdict)
}

func TestOnFailureMarksInternalError(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, nil)

	id, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.NoError(t, err)

	f.svc.OnFailure(id, context.DeadlineExceeded)

	status, err := f.svc.GetStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, api.StateFinished, status.State)
	require.Equal(t, api.VerdictInternalError, status.Verdict)
}

func TestRequestSample(t *testing.T) {
	fake := &sandbox.Fake{Responses: []sandbox.RunResult{
		sandbox.OkRun("5\n", "25\n"),
	}}
	f := newFixture(t, fake)
	f.registerProblem(t, func(p *problems.Problem) {
		p.Generator = &problems.Script{Code: "gen", LangID: "python"}
		p.GenerateCooldown = time.Hour
	})

	in, out, err := f.svc.RequestSample(context.Background(), "alice", "sum")
	require.NoError(t, err)
	require.Equal(t, "5\n", in)
	require.Equal(t, "25\n", out)

	_, _, err = f.svc.RequestSample(context.Background(), "alice", "sum")
	var cdErr *service.CooldownError
	require.ErrorAs(t, err, &cdErr)
}

func TestRequestSampleWithoutGenerator(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, nil)

	_, _, err := f.svc.RequestSample(context.Background(), "alice", "sum")
	require.ErrorIs(t, err, generator.ErrNoGenerator)
}

func TestSampleAndSubmitCooldownsAreSeparate(t *testing.T) {
	fake := &sandbox.Fake{Handler: func(sandbox.RunRequest) sandbox.RunResult {
		return sandbox.OkRun("5\n", "25\n")
	}}
	f := newFixture(t, fake)
	f.registerProblem(t, func(p *problems.Problem) {
		p.Generator = &problems.Script{Code: "gen", LangID: "python"}
		p.SubmitCooldown = time.Hour
		p.GenerateCooldown = time.Hour
	})

	_, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.NoError(t, err)

	_, _, err = f.svc.RequestSample(context.Background(), "alice", "sum")
	require.NoError(t, err, "submit must not consume the sample window")
}

func TestListStatuses(t *testing.T) {
	f := newFixture(t, &sandbox.Fake{})
	f.registerProblem(t, nil)

	id1, err := f.svc.Submit(context.Background(), "alice", "sum", "python", "print(1)")
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), "bob", "sum", "python", "print(1)")
	require.NoError(t, err)

	statuses, err := f.svc.ListStatuses(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, id1, statuses[0].ID)
}
