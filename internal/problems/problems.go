package problems

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// Limits are per-run resource ceilings.
type Limits struct {
	CpuSec    float64
	MemoryKiB int64
}

// TestCase points at the input/answer files of one test. Ordinal order is
// judging order and drives first-failure short-circuiting.
type TestCase struct {
	Ordinal    int
	InputPath  string
	AnswerPath string
}

// Script is an untrusted helper program (validator or generator) judged
// under its own limits.
type Script struct {
	Code   string
	LangID string
	Limits Limits
}

// Problem is read-only configuration consumed by the pipeline. The judge
// never mutates it.
type Problem struct {
	ID     string
	Limits Limits

	AllowedLangIDs mapset.Set[string]

	SubmitCooldown   time.Duration
	GenerateCooldown time.Duration

	Validator *Script
	Generator *Script

	Tests []TestCase
}

func (p *Problem) Allows(langID string) bool {
	if p.AllowedLangIDs == nil || p.AllowedLangIDs.Cardinality() == 0 {
		return true
	}
	return p.AllowedLangIDs.Contains(langID)
}

// Source loads problem definitions; content loading itself is an external
// collaborator of the pipeline.
type Source interface {
	Problem(ctx context.Context, id string) (*Problem, error)
}

// InMemSource keeps problems registered at runtime, e.g. ones arriving
// inline with daemon requests.
type InMemSource struct {
	byID *xsync.MapOf[string, *Problem]
}

func NewInMemSource() *InMemSource {
	return &InMemSource{byID: xsync.NewMapOf[string, *Problem]()}
}

func (s *InMemSource) Register(p *Problem) {
	s.byID.Store(p.ID, p)
}

func (s *InMemSource) Problem(_ context.Context, id string) (*Problem, error) {
	p, ok := s.byID.Load(id)
	if !ok {
		return nil, fmt.Errorf("problem %s not found", id)
	}
	return p, nil
}
