package store

import (
	"context"
	"errors"
	"time"

	"github.com/spectrumoj/judge/api"
)

var ErrNotFound = errors.New("submission not found")

// Submission is the persisted judging record. Source is immutable once
// created; test results are append-only and keep their order.
type Submission struct {
	ID        string
	Owner     string
	ProblemID string
	LangID    string
	Source    string

	State   api.State
	Verdict api.Verdict

	CompileOutput string
	TestResults   []api.TestResult

	MaxCpuMillis int64
	MaxMemoryKiB int64

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Status builds the external snapshot of the submission.
func (s *Submission) Status() api.SubmissionStatus {
	return api.SubmissionStatus{
		ID:            s.ID,
		Owner:         s.Owner,
		ProblemID:     s.ProblemID,
		LangID:        s.LangID,
		State:         s.State,
		Verdict:       s.Verdict,
		CompileOutput: s.CompileOutput,
		TestResults:   append([]api.TestResult(nil), s.TestResults...),
		MaxCpuMillis:  s.MaxCpuMillis,
		MaxMemoryKiB:  s.MaxMemoryKiB,
		CreatedAt:     s.CreatedAt,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
	}
}

// SubmissionStore persists submissions. Writes by the owning worker must be
// visible to any subsequent read of the same id.
type SubmissionStore interface {
	Create(ctx context.Context, sub *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	SetState(ctx context.Context, id string, state api.State) error
	AppendTestResult(ctx context.Context, id string, res api.TestResult) error
	// Finish records the terminal verdict. A submission is finished exactly
	// once; later calls are rejected.
	Finish(ctx context.Context, id string, verdict api.Verdict, compileOutput string, maxCpuMillis, maxMemoryKiB int64) error
	ListByOwner(ctx context.Context, owner string) ([]*Submission, error)
}
