package sandbox

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/spectrumoj/judge/internal/isolate"
)

// wallClockSafetyMarginSec pads the derived wall ceiling so a program that
// legitimately uses its whole cpu budget is not killed on wall time first.
const wallClockSafetyMarginSec = 5.0

// IsolateExecutor runs commands inside isolate(1) boxes. Each Run gets a
// fresh box, so nothing leaks between test cases or submissions. Isolate
// disables network access unless asked otherwise, which we never do.
type IsolateExecutor struct {
	isolate *isolate.Isolate
	logger  *slog.Logger
}

func NewIsolateExecutor(logger *slog.Logger) *IsolateExecutor {
	return &IsolateExecutor{
		isolate: isolate.GetInstance(),
		logger:  logger,
	}
}

func (e *IsolateExecutor) Run(ctx context.Context, req RunRequest) RunResult {
	if err := ctx.Err(); err != nil {
		return setupFailure(err)
	}

	box, err := e.isolate.NewBox()
	if err != nil {
		return setupFailure(err)
	}
	defer func() {
		if err := box.Close(); err != nil {
			e.logger.Warn("failed to close isolate box",
				slog.Int("box_id", box.Id()), slog.Any("error", err))
		}
	}()

	for _, f := range req.Files {
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := box.AddFileWithMode(f.Name, f.Content, mode); err != nil {
			return setupFailure(err)
		}
	}

	constraints := constraintsFor(req)
	process, err := box.Run(req.Command, bytes.NewReader(req.Stdin), &constraints)
	if err != nil {
		return setupFailure(err)
	}

	stdout, stderr, err := captureStreams(process.Stdout(), process.Stderr())
	if err != nil {
		return setupFailure(err)
	}

	metrics, err := process.Wait()
	if err != nil {
		return setupFailure(err)
	}

	res := RunResult{
		ExitCode:   metrics.ExitCode,
		ExitSignal: metrics.ExitSig,
		CpuMillis:  int64(metrics.TimeSec * 1000),
		WallMillis: int64(metrics.TimeWallSec * 1000),
		MemoryKiB:  metrics.PeakMemoryKb(),
		Stdout:     stdout,
		Stderr:     stderr,
		Limit:      classifyMetrics(metrics, req, stderr),
	}

	if metrics.Status == isolate.StatusInternal {
		res.SetupFailed = true
		res.SetupError = metrics.Message
		return res
	}

	for _, name := range req.CollectFiles {
		if !box.HasFile(name) {
			continue
		}
		content, err := box.GetFile(name)
		if err != nil {
			return setupFailure(err)
		}
		if res.Files == nil {
			res.Files = make(map[string][]byte)
		}
		res.Files[name] = content
	}

	return res
}

// captureStreams drains both pipes in full and concurrently. A partial read
// would make the comparable output a prefix and leave the program blocked on
// a full pipe until the wall clock kills it; truncation happens only at the
// display layer.
func captureStreams(stdoutPipe, stderrPipe io.Reader) (stdout, stderr []byte, err error) {
	done := make(chan error, 1)
	go func() {
		var gerr error
		stderr, gerr = io.ReadAll(stderrPipe)
		done <- gerr
	}()

	stdout, err = io.ReadAll(stdoutPipe)
	gerr := <-done
	if err != nil {
		return nil, nil, err
	}
	if gerr != nil {
		return nil, nil, gerr
	}
	return stdout, stderr, nil
}

func constraintsFor(req RunRequest) isolate.Constraints {
	c := isolate.DefaultConstraints()
	if req.CpuTimeSec > 0 {
		c.CpuTimeLimInSec = req.CpuTimeSec
		c.WallTimeLimInSec = req.CpuTimeSec*2 + wallClockSafetyMarginSec
	}
	if req.WallTimeSec > 0 {
		c.WallTimeLimInSec = req.WallTimeSec
	}
	if req.MemoryKiB > 0 {
		c.MemoryLimitInKB = req.MemoryKiB
	}
	if req.MaxProcesses > 0 {
		c.MaxProcesses = req.MaxProcesses
	}
	if req.MaxOpenFiles > 0 {
		c.MaxOpenFiles = req.MaxOpenFiles
	}
	return c
}

func classifyMetrics(m *isolate.Metrics, req RunRequest, stderr []byte) Limit {
	switch {
	case m.Status == isolate.StatusTimeout:
		return LimitTime
	case m.CgOomKilled:
		return LimitMemory
	case m.Status == isolate.StatusSignalled && req.MemoryKiB > 0 && m.PeakMemoryKb() >= req.MemoryKiB:
		return LimitMemory
	case m.ExitCode != 0 && bytes.Contains(stderr, []byte("Resource temporarily unavailable")):
		// fork() failing with EAGAIN inside the box is the observable
		// signature of hitting --processes.
		return LimitProcs
	}
	return LimitNone
}
