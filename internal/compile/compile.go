package compile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/sandbox"
)

// Compilation runs under fixed, generous limits. It is not the thing being
// judged competitively, but compilers are still untrusted input handlers.
const (
	CpuTimeSec   = 30.0
	MemoryKiB    = 512 * 1024
	MaxProcesses = 256

	maxDiagnosticBytes = 4096
)

// Result reports one compilation. A non-empty Diagnostic means the
// submission failed to compile; judging stops there.
type Result struct {
	Artifact   []byte
	Diagnostic string
	Run        sandbox.RunResult
}

func (r Result) Failed() bool { return r.Diagnostic != "" }

type Compiler struct {
	exec   sandbox.Executor
	cache  *xsync.MapOf[string, []byte]
	logger *slog.Logger
}

func New(exec sandbox.Executor, logger *slog.Logger) *Compiler {
	return &Compiler{
		exec:   exec,
		cache:  xsync.NewMapOf[string, []byte](),
		logger: logger,
	}
}

// Compile invokes the language toolchain inside the sandbox, once per
// submission. The artifact is reused for every test case afterwards.
func (c *Compiler) Compile(ctx context.Context, lang langs.Language, source []byte) (Result, error) {
	if !lang.Compiled() {
		return Result{}, fmt.Errorf("language %s is not compiled", lang.ID)
	}

	res := c.exec.Run(ctx, sandbox.RunRequest{
		Command:      lang.CompileCmd,
		Files:        []sandbox.File{{Name: lang.CodeFname, Content: source}},
		CpuTimeSec:   CpuTimeSec,
		MemoryKiB:    MemoryKiB,
		MaxProcesses: MaxProcesses,
		CollectFiles: []string{lang.CompiledFname},
	})

	if res.SetupFailed {
		return Result{Run: res}, fmt.Errorf("sandbox setup failed during compilation: %s", res.SetupError)
	}

	if res.Limit != sandbox.LimitNone || res.ExitCode != 0 || res.ExitSignal != nil {
		return Result{Diagnostic: diagnostic(res), Run: res}, nil
	}

	artifact, ok := res.Files[lang.CompiledFname]
	if !ok {
		return Result{Run: res}, fmt.Errorf("compiler succeeded but produced no executable file %s", lang.CompiledFname)
	}

	c.logger.Debug("compiled submission",
		slog.String("lang", lang.ID),
		slog.Int64("cpu_ms", res.CpuMillis),
		slog.Int("artifact_bytes", len(artifact)))

	return Result{Artifact: artifact, Run: res}, nil
}

// CompileCached compiles helper scripts (validators, generators) keyed by
// source hash. Those are per-problem, not per-submission, so the artifact
// survives across submissions.
func (c *Compiler) CompileCached(ctx context.Context, lang langs.Language, source []byte) (Result, error) {
	key := cacheKey(lang.ID, source)
	if artifact, ok := c.cache.Load(key); ok {
		return Result{Artifact: artifact}, nil
	}

	res, err := c.Compile(ctx, lang, source)
	if err != nil || res.Failed() {
		return res, err
	}

	c.cache.Store(key, res.Artifact)
	return res, nil
}

func cacheKey(langID string, source []byte) string {
	h := sha256.New()
	h.Write([]byte(langID))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

func diagnostic(res sandbox.RunResult) string {
	switch res.Limit {
	case sandbox.LimitTime:
		return "compilation timed out"
	case sandbox.LimitMemory:
		return "compilation exceeded the memory limit"
	case sandbox.LimitProcs:
		return "compilation exceeded the process limit"
	}
	msg := strings.TrimSpace(string(res.Stderr))
	if len(msg) > maxDiagnosticBytes {
		cut := maxDiagnosticBytes
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	if msg == "" {
		msg = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
	}
	return msg
}
