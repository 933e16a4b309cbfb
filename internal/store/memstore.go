package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spectrumoj/judge/api"
)

// MemStore keeps submissions in memory. The judging pipeline only needs the
// SubmissionStore surface, so swapping in a database-backed store later does
// not touch any judging code.
type MemStore struct {
	records *xsync.MapOf[string, *record]
	now     func() time.Time
}

type record struct {
	mu  sync.Mutex
	sub Submission
}

var _ SubmissionStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		records: xsync.NewMapOf[string, *record](),
		now:     time.Now,
	}
}

func (m *MemStore) Create(_ context.Context, sub *Submission) error {
	if sub.ID == "" {
		return fmt.Errorf("submission id is empty")
	}
	clone := *sub
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = m.now()
	}
	if clone.State == "" {
		clone.State = api.StateQueued
	}
	if _, loaded := m.records.LoadOrStore(sub.ID, &record{sub: clone}); loaded {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (*Submission, error) {
	rec, ok := m.records.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneSubmission(&rec.sub), nil
}

func (m *MemStore) SetState(_ context.Context, id string, state api.State) error {
	rec, ok := m.records.Load(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sub.State.Terminal() {
		return fmt.Errorf("submission %s is already finished", id)
	}
	if rec.sub.StartedAt == nil && state != api.StateQueued {
		now := m.now()
		rec.sub.StartedAt = &now
	}
	rec.sub.State = state
	return nil
}

func (m *MemStore) AppendTestResult(_ context.Context, id string, res api.TestResult) error {
	rec, ok := m.records.Load(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.sub.TestResults = append(rec.sub.TestResults, res)
	return nil
}

func (m *MemStore) Finish(_ context.Context, id string, verdict api.Verdict, compileOutput string, maxCpuMillis, maxMemoryKiB int64) error {
	rec, ok := m.records.Load(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sub.State.Terminal() {
		return fmt.Errorf("submission %s is already finished", id)
	}
	now := m.now()
	rec.sub.State = api.StateFinished
	rec.sub.Verdict = verdict
	rec.sub.CompileOutput = compileOutput
	rec.sub.MaxCpuMillis = maxCpuMillis
	rec.sub.MaxMemoryKiB = maxMemoryKiB
	rec.sub.FinishedAt = &now
	if rec.sub.StartedAt == nil {
		rec.sub.StartedAt = &now
	}
	return nil
}

func (m *MemStore) ListByOwner(_ context.Context, owner string) ([]*Submission, error) {
	var subs []*Submission
	m.records.Range(func(_ string, rec *record) bool {
		rec.mu.Lock()
		if rec.sub.Owner == owner {
			subs = append(subs, cloneSubmission(&rec.sub))
		}
		rec.mu.Unlock()
		return true
	})
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

func cloneSubmission(sub *Submission) *Submission {
	clone := *sub
	clone.TestResults = append([]api.TestResult(nil), sub.TestResults...)
	return &clone
}
