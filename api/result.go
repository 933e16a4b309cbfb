package api

import "time"

// TestResult is the recorded outcome of one test case run.
type TestResult struct {
	Ordinal int     `json:"ordinal"`
	Verdict Verdict `json:"verdict"`

	CpuMillis  int64 `json:"cpu_ms"`
	WallMillis int64 `json:"wall_ms"`
	MemoryKiB  int64 `json:"mem_kib"`

	ExitCode   int64  `json:"exit_code"`
	ExitSignal *int64 `json:"exit_signal,omitempty"`

	// Stdout and Stderr are truncated for display.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// SubmissionStatus is the non-blocking snapshot returned by GetStatus.
type SubmissionStatus struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	ProblemID string `json:"problem_id"`
	LangID    string `json:"lang_id"`

	State   State   `json:"state"`
	Verdict Verdict `json:"verdict,omitempty"`

	// CompileOutput carries the toolchain diagnostic on compile errors.
	CompileOutput string `json:"compile_output,omitempty"`

	TestResults []TestResult `json:"test_results"`

	MaxCpuMillis int64 `json:"max_cpu_ms"`
	MaxMemoryKiB int64 `json:"max_mem_kib"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
