package judge

import (
	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/sandbox"
)

// classifyRun maps a finished sandbox run to a verdict, or "" for a clean
// exit that still needs output comparison. There is no process-limit
// verdict; a killed fork bomb is a runtime error.
func classifyRun(res sandbox.RunResult) api.Verdict {
	switch res.Limit {
	case sandbox.LimitTime:
		return api.VerdictTimeLimitExceeded
	case sandbox.LimitMemory:
		return api.VerdictMemoryLimitExceeded
	case sandbox.LimitProcs:
		return api.VerdictRuntimeError
	}
	if res.Crashed() {
		return api.VerdictRuntimeError
	}
	return ""
}
