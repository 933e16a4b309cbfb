package api

// Verdict is the final judging outcome for a submission or a single test.
type Verdict string

const (
	VerdictAccepted            Verdict = "accepted"
	VerdictWrongAnswer         Verdict = "wrong_answer"
	VerdictTimeLimitExceeded   Verdict = "time_limit_exceeded"
	VerdictMemoryLimitExceeded Verdict = "memory_limit_exceeded"
	VerdictRuntimeError        Verdict = "runtime_error"
	VerdictCompileError        Verdict = "compile_error"
	VerdictInternalError       Verdict = "internal_error"
)

// State is the lifecycle position of a submission. A submission in
// StateFinished carries exactly one Verdict.
type State string

const (
	StateQueued    State = "queued"
	StateCompiling State = "compiling"
	StateRunning   State = "running"
	StateFinished  State = "finished"
)

func (s State) Terminal() bool { return s == StateFinished }
