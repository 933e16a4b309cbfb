package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spectrumoj/judge/internal/compile"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/sandbox"
)

var ErrNoGenerator = errors.New("problem has no generator")

// Generator limit fallbacks when the problem does not set its own.
const (
	defaultCpuSec    = 5.0
	defaultMemoryKiB = 256 * 1024
	maxProcesses     = 64
)

// Runner executes a problem's sample generator. The contract is fixed: the
// generator's stdout becomes the sample input, its stderr the sample
// output. A failed run affects this request only.
type Runner struct {
	exec     sandbox.Executor
	compiler *compile.Compiler
	langs    *langs.Registry
	logger   *slog.Logger
}

func New(exec sandbox.Executor, compiler *compile.Compiler, registry *langs.Registry, logger *slog.Logger) *Runner {
	return &Runner{exec: exec, compiler: compiler, langs: registry, logger: logger}
}

func (r *Runner) Generate(ctx context.Context, prob *problems.Problem) (sampleIn, sampleOut []byte, err error) {
	script := prob.Generator
	if script == nil {
		return nil, nil, ErrNoGenerator
	}

	lang, ok := r.langs.Get(script.LangID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown generator language %s", script.LangID)
	}

	var files []sandbox.File
	execCmd := lang.ExecCmd
	if lang.Compiled() {
		res, err := r.compiler.CompileCached(ctx, lang, []byte(script.Code))
		if err != nil {
			return nil, nil, err
		}
		if res.Failed() {
			return nil, nil, fmt.Errorf("generator compilation failed: %s", res.Diagnostic)
		}
		files = []sandbox.File{{Name: lang.CompiledFname, Content: res.Artifact, Mode: 0755}}
	} else {
		files = []sandbox.File{{Name: lang.CodeFname, Content: []byte(script.Code)}}
	}

	limits := script.Limits
	if limits.CpuSec == 0 {
		limits.CpuSec = defaultCpuSec
	}
	if limits.MemoryKiB == 0 {
		limits.MemoryKiB = defaultMemoryKiB
	}

	run := r.exec.Run(ctx, sandbox.RunRequest{
		Command:      execCmd,
		Files:        files,
		CpuTimeSec:   limits.CpuSec,
		MemoryKiB:    limits.MemoryKiB,
		MaxProcesses: maxProcesses,
	})

	if run.SetupFailed {
		return nil, nil, fmt.Errorf("sandbox setup failed: %s", run.SetupError)
	}
	if run.Limit != sandbox.LimitNone {
		return nil, nil, fmt.Errorf("generator exceeded its %s limit", run.Limit)
	}
	if run.ExitCode != 0 || run.ExitSignal != nil {
		return nil, nil, fmt.Errorf("generator exited with code %d", run.ExitCode)
	}

	r.logger.Debug("generated sample",
		slog.String("problem", prob.ID),
		slog.Int("input_bytes", len(run.Stdout)),
		slog.Int("output_bytes", len(run.Stderr)))

	return run.Stdout, run.Stderr, nil
}
