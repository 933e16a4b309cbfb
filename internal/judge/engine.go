package judge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/compile"
	"github.com/spectrumoj/judge/internal/events"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/sandbox"
	"github.com/spectrumoj/judge/internal/store"
)

const (
	// submissions may not spawn helpers; validators and generators get the
	// same budget.
	maxProcesses = 64

	maxDisplayBytes = 4096
)

// Engine drives one submission through compile and per-test execution and
// folds the outcomes into a single verdict.
type Engine struct {
	exec     sandbox.Executor
	compiler *compile.Compiler
	langs    *langs.Registry
	store    store.SubmissionStore
	sink     events.Sink
	logger   *slog.Logger
}

func NewEngine(
	exec sandbox.Executor,
	compiler *compile.Compiler,
	registry *langs.Registry,
	subStore store.SubmissionStore,
	sink events.Sink,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		exec:     exec,
		compiler: compiler,
		langs:    registry,
		store:    subStore,
		sink:     sink,
		logger:   logger,
	}
}

// Judge takes a queued submission to its terminal verdict. It never returns
// an error: judge-side failures become InternalError so no submission is
// left in a non-terminal state.
func (e *Engine) Judge(ctx context.Context, sub *store.Submission, prob *problems.Problem) {
	e.sink.StartEvaluation(sub.ID)

	lang, ok := e.langs.Get(sub.LangID)
	if !ok {
		e.finishInternal(ctx, sub.ID, fmt.Errorf("unknown language %s", sub.LangID))
		return
	}

	program, ok := e.prepareProgram(ctx, sub, lang)
	if !ok {
		return
	}

	validator, err := e.prepareValidator(ctx, prob)
	if err != nil {
		e.finishInternal(ctx, sub.ID, err)
		return
	}

	if err := e.store.SetState(ctx, sub.ID, api.StateRunning); err != nil {
		e.finishInternal(ctx, sub.ID, err)
		return
	}

	var maxCpuMillis, maxMemoryKiB int64
	verdict := api.VerdictAccepted

	for _, tc := range prob.Tests {
		e.sink.ReachTest(sub.ID, tc.Ordinal)

		input, err := os.ReadFile(tc.InputPath)
		if err != nil {
			e.finishInternal(ctx, sub.ID, fmt.Errorf("failed to read test %d input: %w", tc.Ordinal, err))
			return
		}
		answer, err := os.ReadFile(tc.AnswerPath)
		if err != nil {
			e.finishInternal(ctx, sub.ID, fmt.Errorf("failed to read test %d answer: %w", tc.Ordinal, err))
			return
		}

		run := e.exec.Run(ctx, sandbox.RunRequest{
			Command:      program.execCmd,
			Files:        program.files,
			Stdin:        input,
			CpuTimeSec:   prob.Limits.CpuSec,
			MemoryKiB:    prob.Limits.MemoryKiB,
			MaxProcesses: maxProcesses,
		})
		if run.SetupFailed {
			e.finishInternal(ctx, sub.ID, fmt.Errorf("sandbox setup failed on test %d: %s", tc.Ordinal, run.SetupError))
			return
		}

		testVerdict := classifyRun(run)
		if testVerdict == "" {
			testVerdict, err = e.checkOutput(ctx, validator, input, run.Stdout, answer)
			if err != nil {
				e.finishInternal(ctx, sub.ID, fmt.Errorf("validator failed on test %d: %w", tc.Ordinal, err))
				return
			}
		}

		result := testResult(tc.Ordinal, testVerdict, run)
		if err := e.store.AppendTestResult(ctx, sub.ID, result); err != nil {
			e.finishInternal(ctx, sub.ID, err)
			return
		}
		e.sink.FinishTest(sub.ID, result)

		maxCpuMillis = max(maxCpuMillis, run.CpuMillis)
		maxMemoryKiB = max(maxMemoryKiB, run.MemoryKiB)

		if testVerdict != api.VerdictAccepted {
			verdict = testVerdict
			break
		}
	}

	if err := e.store.Finish(ctx, sub.ID, verdict, "", maxCpuMillis, maxMemoryKiB); err != nil {
		e.logger.Error("failed to persist verdict",
			slog.String("submission", sub.ID), slog.Any("error", err))
		return
	}
	e.sink.FinishEvaluation(sub.ID, verdict, "")
}

// preparedProgram is the sandbox payload reused for every test case of one
// submission.
type preparedProgram struct {
	execCmd string
	files   []sandbox.File
}

func (e *Engine) prepareProgram(ctx context.Context, sub *store.Submission, lang langs.Language) (preparedProgram, bool) {
	if !lang.Compiled() {
		return preparedProgram{
			execCmd: lang.ExecCmd,
			files:   []sandbox.File{{Name: lang.CodeFname, Content: []byte(sub.Source)}},
		}, true
	}

	if err := e.store.SetState(ctx, sub.ID, api.StateCompiling); err != nil {
		e.finishInternal(ctx, sub.ID, err)
		return preparedProgram{}, false
	}
	e.sink.StartCompilation(sub.ID)

	res, err := e.compiler.Compile(ctx, lang, []byte(sub.Source))
	if err != nil {
		e.finishInternal(ctx, sub.ID, err)
		return preparedProgram{}, false
	}
	e.sink.FinishCompilation(sub.ID, events.StatsFromRun(res.Run))

	if res.Failed() {
		if err := e.store.Finish(ctx, sub.ID, api.VerdictCompileError, res.Diagnostic, 0, 0); err != nil {
			e.logger.Error("failed to persist compile error",
				slog.String("submission", sub.ID), slog.Any("error", err))
		}
		e.sink.FinishEvaluation(sub.ID, api.VerdictCompileError, res.Diagnostic)
		return preparedProgram{}, false
	}

	return preparedProgram{
		execCmd: lang.ExecCmd,
		files:   []sandbox.File{{Name: lang.CompiledFname, Content: res.Artifact, Mode: 0755}},
	}, true
}

// preparedValidator is built once per submission; the validator binary is
// cached across submissions by source hash.
type preparedValidator struct {
	execCmd string
	files   []sandbox.File
	limits  problems.Limits
}

func (e *Engine) prepareValidator(ctx context.Context, prob *problems.Problem) (*preparedValidator, error) {
	script := prob.Validator
	if script == nil {
		return nil, nil
	}

	lang, ok := e.langs.Get(script.LangID)
	if !ok {
		return nil, fmt.Errorf("unknown validator language %s", script.LangID)
	}

	limits := script.Limits
	if limits.CpuSec == 0 {
		limits.CpuSec = prob.Limits.CpuSec
	}
	if limits.MemoryKiB == 0 {
		limits.MemoryKiB = prob.Limits.MemoryKiB
	}

	v := &preparedValidator{limits: limits}
	if lang.Compiled() {
		res, err := e.compiler.CompileCached(ctx, lang, []byte(script.Code))
		if err != nil {
			return nil, err
		}
		if res.Failed() {
			return nil, fmt.Errorf("validator compilation failed: %s", res.Diagnostic)
		}
		v.files = []sandbox.File{{Name: lang.CompiledFname, Content: res.Artifact, Mode: 0755}}
	} else {
		v.files = []sandbox.File{{Name: lang.CodeFname, Content: []byte(script.Code)}}
	}
	v.execCmd = lang.ExecCmd + " input.txt output.txt answer.txt"
	return v, nil
}

// checkOutput decides accepted vs wrong answer for a cleanly exited run.
// A sandbox-level failure of the validator itself is returned as an error,
// never blamed on the submission.
func (e *Engine) checkOutput(ctx context.Context, v *preparedValidator, input, output, answer []byte) (api.Verdict, error) {
	if v == nil {
		if outputsEquivalent(output, answer) {
			return api.VerdictAccepted, nil
		}
		return api.VerdictWrongAnswer, nil
	}

	files := append([]sandbox.File{}, v.files...)
	files = append(files,
		sandbox.File{Name: "input.txt", Content: input},
		sandbox.File{Name: "output.txt", Content: output},
		sandbox.File{Name: "answer.txt", Content: answer},
	)

	run := e.exec.Run(ctx, sandbox.RunRequest{
		Command:      v.execCmd,
		Files:        files,
		CpuTimeSec:   v.limits.CpuSec,
		MemoryKiB:    v.limits.MemoryKiB,
		MaxProcesses: maxProcesses,
	})

	if run.SetupFailed {
		return "", fmt.Errorf("sandbox setup failed: %s", run.SetupError)
	}
	if run.Limit != sandbox.LimitNone || run.ExitSignal != nil {
		return "", fmt.Errorf("validator did not exit cleanly (limit=%s)", run.Limit)
	}
	if run.ExitCode == 0 {
		return api.VerdictAccepted, nil
	}
	return api.VerdictWrongAnswer, nil
}

// finishInternal records a judge-side failure. The submitter sees a generic
// internal error; the detail only goes to the log.
func (e *Engine) finishInternal(ctx context.Context, subID string, cause error) {
	e.logger.Error("internal judging error",
		slog.String("submission", subID), slog.Any("error", cause))
	if err := e.store.Finish(ctx, subID, api.VerdictInternalError, "", 0, 0); err != nil {
		e.logger.Error("failed to persist internal error",
			slog.String("submission", subID), slog.Any("error", err))
	}
	e.sink.FinishEvaluation(subID, api.VerdictInternalError, "internal error")
}

func testResult(ordinal int, verdict api.Verdict, run sandbox.RunResult) api.TestResult {
	res := api.TestResult{
		Ordinal:    ordinal,
		Verdict:    verdict,
		CpuMillis:  run.CpuMillis,
		WallMillis: run.WallMillis,
		MemoryKiB:  run.MemoryKiB,
		ExitCode:   run.ExitCode,
		ExitSignal: run.ExitSignal,
		Stderr:     truncateForDisplay(run.Stderr),
	}
	// raw output is only surfaced when it is what went wrong
	if verdict == api.VerdictWrongAnswer {
		res.Stdout = truncateForDisplay(run.Stdout)
	}
	return res
}

func truncateForDisplay(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxDisplayBytes {
		return s
	}
	cut := maxDisplayBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
