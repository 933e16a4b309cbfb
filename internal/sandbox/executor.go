package sandbox

import (
	"context"
	"os"
)

// Limit tags the resource ceiling a run violated, if any.
type Limit string

const (
	LimitNone   Limit = ""
	LimitTime   Limit = "time"
	LimitMemory Limit = "memory"
	LimitProcs  Limit = "procs"
)

// File is placed into the box working directory before the run.
type File struct {
	Name    string
	Content []byte
	Mode    os.FileMode
}

// RunRequest describes one isolated execution. A request is built fresh per
// run and never reused; the box filesystem is re-sealed every time.
type RunRequest struct {
	Command string
	Files   []File
	Stdin   []byte

	CpuTimeSec float64
	// WallTimeSec guards against sleeping/blocking programs. Zero means
	// derive from the cpu limit.
	WallTimeSec  float64
	MemoryKiB    int64
	MaxProcesses int
	MaxOpenFiles int

	// CollectFiles names box files to read back after the run, e.g. a
	// compiled artifact.
	CollectFiles []string
}

// RunResult reports one finished (or failed-to-start) run. Produced once,
// never mutated.
type RunResult struct {
	ExitCode   int64
	ExitSignal *int64

	CpuMillis  int64
	WallMillis int64
	MemoryKiB  int64

	Stdout []byte
	Stderr []byte

	Limit Limit

	// SetupFailed marks a failure of the sandbox itself, to be reported as
	// a judge-side error and never attributed to the submitted program.
	SetupFailed bool
	SetupError  string

	Files map[string][]byte
}

// Crashed reports whether the program terminated abnormally with no limit
// violation.
func (r RunResult) Crashed() bool {
	return r.Limit == LimitNone && !r.SetupFailed &&
		(r.ExitCode != 0 || r.ExitSignal != nil)
}

// Executor runs one command in isolation. Run always returns a result; any
// failure to construct the sandbox is reported via SetupFailed.
type Executor interface {
	Run(ctx context.Context, req RunRequest) RunResult
}

func setupFailure(err error) RunResult {
	return RunResult{SetupFailed: true, SetupError: err.Error()}
}
