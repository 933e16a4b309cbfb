package events

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/spectrumoj/judge/api"
)

// Router forwards events to a sink registered per submission. Submissions
// without a binding are silently dropped. Bindings are removed once the
// evaluation finishes.
type Router struct {
	sinks *xsync.MapOf[string, Sink]
}

var _ Sink = (*Router)(nil)

func NewRouter() *Router {
	return &Router{sinks: xsync.NewMapOf[string, Sink]()}
}

func (r *Router) Bind(subID string, s Sink) {
	r.sinks.Store(subID, s)
}

func (r *Router) Unbind(subID string) {
	r.sinks.Delete(subID)
}

func (r *Router) sinkFor(subID string) Sink {
	if s, ok := r.sinks.Load(subID); ok {
		return s
	}
	return Nop{}
}

func (r *Router) StartEvaluation(subID string) {
	r.sinkFor(subID).StartEvaluation(subID)
}

func (r *Router) StartCompilation(subID string) {
	r.sinkFor(subID).StartCompilation(subID)
}

func (r *Router) FinishCompilation(subID string, stats *RunStats) {
	r.sinkFor(subID).FinishCompilation(subID, stats)
}

func (r *Router) ReachTest(subID string, ordinal int) {
	r.sinkFor(subID).ReachTest(subID, ordinal)
}

func (r *Router) FinishTest(subID string, res api.TestResult) {
	r.sinkFor(subID).FinishTest(subID, res)
}

func (r *Router) FinishEvaluation(subID string, verdict api.Verdict, errMsg string) {
	r.sinkFor(subID).FinishEvaluation(subID, verdict, errMsg)
	r.Unbind(subID)
}
