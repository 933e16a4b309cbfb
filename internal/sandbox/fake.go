package sandbox

import (
	"context"
	"sync"
)

// Fake is a scriptable Executor for tests. It either delegates to Handler
// or consumes Responses in order.
type Fake struct {
	mu        sync.Mutex
	Handler   func(req RunRequest) RunResult
	Responses []RunResult
	Calls     []RunRequest
}

var _ Executor = (*Fake)(nil)

func (f *Fake) Run(_ context.Context, req RunRequest) RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, req)

	if f.Handler != nil {
		return f.Handler(req)
	}
	if len(f.Responses) > 0 {
		res := f.Responses[0]
		f.Responses = f.Responses[1:]
		return res
	}
	return OkRun("", "")
}

// CallCount returns how many runs the fake has served.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// OkRun builds a clean-exit result with the given streams.
func OkRun(stdout, stderr string) RunResult {
	return RunResult{
		ExitCode:  0,
		CpuMillis: 10,
		MemoryKiB: 1024,
		Stdout:    []byte(stdout),
		Stderr:    []byte(stderr),
	}
}

// FailedRun builds a non-zero-exit result.
func FailedRun(exitCode int64, stderr string) RunResult {
	return RunResult{
		ExitCode:  exitCode,
		CpuMillis: 10,
		MemoryKiB: 1024,
		Stderr:    []byte(stderr),
	}
}

// LimitRun builds a result violating the given limit.
func LimitRun(limit Limit) RunResult {
	killSig := int64(9)
	return RunResult{
		ExitCode:   -1,
		ExitSignal: &killSig,
		CpuMillis:  2000,
		MemoryKiB:  262144,
		Limit:      limit,
	}
}
