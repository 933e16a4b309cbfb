package generator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spectrumoj/judge/internal/compile"
	"github.com/spectrumoj/judge/internal/generator"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/sandbox"
)

func newRunner(fake *sandbox.Fake) *generator.Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return generator.New(fake, compile.New(fake, logger), langs.Default(), logger)
}

func genProblem() *problems.Problem {
	return &problems.Problem{
		ID: "sum",
		Generator: &problems.Script{
			Code:   "import random, sys\nn = random.randint(1, 100)\nprint(n)\nprint(n * n, file=sys.stderr)",
			LangID: "python",
		},
	}
}

func TestGenerateSplitsStreams(t *testing.T) {
	fake := &sandbox.Fake{Responses: []sandbox.RunResult{
		sandbox.OkRun("5\n", "25\n"),
	}}

	in, out, err := newRunner(fake).Generate(context.Background(), genProblem())
	require.NoError(t, err)
	require.Equal(t, "5\n", string(in), "stdout is the sample input")
	require.Equal(t, "25\n", string(out), "stderr is the sample output")
}

func TestGenerateWithoutGenerator(t *testing.T) {
	prob := &problems.Problem{ID: "sum"}
	_, _, err := newRunner(&sandbox.Fake{}).Generate(context.Background(), prob)
	require.ErrorIs(t, err, generator.ErrNoGenerator)
}

func TestGenerateNonZeroExit(t *testing.T) {
	fake := &sandbox.Fake{Responses: []sandbox.RunResult{
		sandbox.FailedRun(1, "Traceback (most recent call last)"),
	}}
	_, _, err := newRunner(fake).Generate(context.Background(), genProblem())
	require.Error(t, err)
}

func TestGenerateLimitViolation(t *testing.T) {
	fake := &sandbox.Fake{Responses: []sandbox.RunResult{
		sandbox.LimitRun(sandbox.LimitTime),
	}}
	_, _, err := newRunner(fake).Generate(context.Background(), genProblem())
	require.Error(t, err)
}

func TestGenerateUnknownLanguage(t *testing.T) {
	prob := genProblem()
	prob.Generator.LangID = "fortran"
	_, _, err := newRunner(&sandbox.Fake{}).Generate(context.Background(), prob)
	require.Error(t, err)
}

func TestGenerateDefaultLimits(t *testing.T) {
	fake := &sandbox.Fake{Responses: []sandbox.RunResult{
		sandbox.OkRun("1\n", "1\n"),
	}}

	_, _, err := newRunner(fake).Generate(context.Background(), genProblem())
	require.NoError(t, err)

	req := fake.Calls[0]
	require.Equal(t, 5.0, req.CpuTimeSec)
	require.Equal(t, int64(256*1024), req.MemoryKiB)
}
