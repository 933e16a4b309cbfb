package events

import (
	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/sandbox"
)

// Message types published by the judging pipeline, one per Sink method.
const (
	MsgTypeStartedEvaluation   = "started_evaluation"
	MsgTypeStartedCompilation  = "started_compilation"
	MsgTypeFinishedCompilation = "finished_compilation"
	MsgTypeReachedTest         = "reached_test"
	MsgTypeFinishedTest        = "finished_test"
	MsgTypeFinishedEvaluation  = "finished_evaluation"
)

// Sink receives judging progress. Implementations must be safe for use from
// multiple workers; per-submission calls arrive in order.
type Sink interface {
	StartEvaluation(subID string)
	StartCompilation(subID string)
	FinishCompilation(subID string, stats *RunStats)
	ReachTest(subID string, ordinal int)
	FinishTest(subID string, res api.TestResult)
	FinishEvaluation(subID string, verdict api.Verdict, errMsg string)
}

// RunStats is a trimmed view of one sandbox run for event payloads.
type RunStats struct {
	ExitCode   int64  `json:"exit_code"`
	CpuMillis  int64  `json:"cpu_ms"`
	WallMillis int64  `json:"wall_ms"`
	MemoryKiB  int64  `json:"mem_kib"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// StatsFromRun converts a sandbox result for publication, trimming the
// output streams to a displayable rectangle.
func StatsFromRun(res sandbox.RunResult) *RunStats {
	return &RunStats{
		ExitCode:   res.ExitCode,
		CpuMillis:  res.CpuMillis,
		WallMillis: res.WallMillis,
		MemoryKiB:  res.MemoryKiB,
		Stdout:     TrimToRectangle(string(res.Stdout), MaxPayloadHeight, MaxPayloadWidth),
		Stderr:     TrimToRectangle(string(res.Stderr), MaxPayloadHeight, MaxPayloadWidth),
	}
}

type Header struct {
	SubmissionID string `json:"submission_id"`
	MsgType      string `json:"msg_type"`
}

type StartedEvaluation struct {
	Header
}

type StartedCompilation struct {
	Header
}

type FinishedCompilation struct {
	Header
	RunStats *RunStats `json:"run_stats"`
}

type ReachedTest struct {
	Header
	Ordinal int `json:"ordinal"`
}

type FinishedTest struct {
	Header
	Result api.TestResult `json:"result"`
}

type FinishedEvaluation struct {
	Header
	Verdict      api.Verdict `json:"verdict"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Nop discards all events.
type Nop struct{}

var _ Sink = Nop{}

func (Nop) StartEvaluation(string)                       {}
func (Nop) StartCompilation(string)                      {}
func (Nop) FinishCompilation(string, *RunStats)          {}
func (Nop) ReachTest(string, int)                        {}
func (Nop) FinishTest(string, api.TestResult)            {}
func (Nop) FinishEvaluation(string, api.Verdict, string) {}

// Multi fans events out to several sinks.
type Multi []Sink

var _ Sink = Multi{}

func (m Multi) StartEvaluation(subID string) {
	for _, s := range m {
		s.StartEvaluation(subID)
	}
}

func (m Multi) StartCompilation(subID string) {
	for _, s := range m {
		s.StartCompilation(subID)
	}
}

func (m Multi) FinishCompilation(subID string, stats *RunStats) {
	for _, s := range m {
		s.FinishCompilation(subID, stats)
	}
}

func (m Multi) ReachTest(subID string, ordinal int) {
	for _, s := range m {
		s.ReachTest(subID, ordinal)
	}
}

func (m Multi) FinishTest(subID string, res api.TestResult) {
	for _, s := range m {
		s.FinishTest(subID, res)
	}
}

func (m Multi) FinishEvaluation(subID string, verdict api.Verdict, errMsg string) {
	for _, s := range m {
		s.FinishEvaluation(subID, verdict, errMsg)
	}
}
