package events

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spectrumoj/judge/api"
)

// TermSink prints judging progress to the terminal, one line per event.
type TermSink struct {
	StartedAt time.Time
}

var _ Sink = (*TermSink)(nil)

func NewTermSink() *TermSink { return &TermSink{StartedAt: time.Now()} }

var (
	okColor   = color.New(color.FgGreen)
	badColor  = color.New(color.FgRed)
	noteColor = color.New(color.FgYellow)
)

func (t *TermSink) StartEvaluation(subID string) {
	fmt.Printf("== Evaluation %s started ==\n", subID)
}

func (t *TermSink) StartCompilation(subID string) {
	fmt.Println("-- Compilation started --")
}

func (t *TermSink) FinishCompilation(subID string, stats *RunStats) {
	fmt.Println("-- Compilation finished --")
	if stats != nil {
		fmt.Printf("exit=%d cpu=%dms wall=%dms mem=%dKiB\n",
			stats.ExitCode, stats.CpuMillis, stats.WallMillis, stats.MemoryKiB)
		if len(stats.Stderr) > 0 {
			fmt.Printf("stderr:\n%s\n", stats.Stderr)
		}
	}
}

func (t *TermSink) ReachTest(subID string, ordinal int) {
	fmt.Printf("-> Test %d reached\n", ordinal)
}

func (t *TermSink) FinishTest(subID string, res api.TestResult) {
	verdictColor := badColor
	if res.Verdict == api.VerdictAccepted {
		verdictColor = okColor
	}
	fmt.Printf("<- Test %d finished: %s (cpu=%dms mem=%dKiB)\n",
		res.Ordinal, verdictColor.Sprint(res.Verdict), res.CpuMillis, res.MemoryKiB)
}

func (t *TermSink) FinishEvaluation(subID string, verdict api.Verdict, errMsg string) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	verdictColor := badColor
	if verdict == api.VerdictAccepted {
		verdictColor = okColor
	}
	fmt.Printf("== Evaluation %s finished: %s in %s ==\n", subID, verdictColor.Sprint(verdict), dur)
	if errMsg != "" {
		noteColor.Printf("error: %s\n", errMsg)
	}
}
