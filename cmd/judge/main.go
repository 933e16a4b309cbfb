package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/compile"
	"github.com/spectrumoj/judge/internal/cooldown"
	"github.com/spectrumoj/judge/internal/environment"
	"github.com/spectrumoj/judge/internal/events"
	"github.com/spectrumoj/judge/internal/filestore"
	"github.com/spectrumoj/judge/internal/generator"
	"github.com/spectrumoj/judge/internal/judge"
	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/queue"
	"github.com/spectrumoj/judge/internal/sandbox"
	"github.com/spectrumoj/judge/internal/scenario"
	"github.com/spectrumoj/judge/internal/service"
	"github.com/spectrumoj/judge/internal/store"
)

func main() {
	cmd := &cli.Command{
		Name:  "judge",
		Usage: "programming task submission judge",
		Commands: []*cli.Command{
			{
				Name:   "daemon",
				Usage:  "consume judge requests from NATS and publish results",
				Action: runDaemon,
			},
			{
				Name:  "eval",
				Usage: "run scenarios from a TOML file through the judging pipeline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "path to the scenario TOML file",
						Required: true,
					},
				},
				Action: runEval,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	}))
}

func runDaemon(ctx context.Context, _ *cli.Command) error {
	cfg := environment.ReadEnvConfig()
	logger := newLogger()

	registry := langs.Default()
	if cfg.LanguagesPath != "" {
		var err error
		registry, err = langs.LoadToml(cfg.LanguagesPath)
		if err != nil {
			return err
		}
	}

	fs, err := filestore.New(cfg.FileDir, cfg.TmpDir, nil)
	if err != nil {
		return err
	}
	fs.Start()

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	exec := sandbox.NewIsolateExecutor(logger)
	compiler := compile.New(exec, logger)
	st := store.NewMemStore()
	src := problems.NewInMemSource()

	natsSink := events.NewNatsSink(nc, cfg.ResSubject)
	router := events.NewRouter()
	sink := events.Multi{natsSink, router}

	engine := judge.NewEngine(exec, compiler, registry, st, sink, logger)
	gen := generator.New(exec, compiler, registry, logger)
	q := queue.New(cfg.QueueSize, logger)
	svc := service.New(st, src, q, engine, gen, cooldown.NewGuard(), logger)

	sub, err := nc.Subscribe(cfg.SubmSubject, func(msg *nats.Msg) {
		handleRequest(ctx, msg.Data, fs, src, router, sink, svc, logger)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.SubmSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("daemon started",
		"workers", cfg.Workers, "subject", cfg.SubmSubject, "nats", cfg.NatsURL)
	return q.Start(ctx, cfg.Workers, svc, svc.OnFailure)
}

func handleRequest(
	ctx context.Context,
	data []byte,
	fs *filestore.Store,
	src *problems.InMemSource,
	router *events.Router,
	sink events.Sink,
	svc *service.Service,
	logger *slog.Logger,
) {
	var req api.JudgeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Error("failed to unmarshal judge request", "error", err)
		return
	}
	if req.SubmissionUuid == "" {
		req.SubmissionUuid = uuid.New().String()
	}

	prob, err := materializeProblem(fs, &req)
	if err != nil {
		logger.Error("failed to materialize problem",
			"id", req.SubmissionUuid, "problem", req.ProblemID, "error", err)
		sink.FinishEvaluation(req.SubmissionUuid, api.VerdictInternalError, "failed to prepare test files")
		return
	}
	src.Register(prob)

	if req.ResSqsUrl != "" {
		sqsSink, err := events.NewSqsSink(ctx, req.ResSqsUrl)
		if err != nil {
			logger.Error("failed to create SQS sink", "id", req.SubmissionUuid, "error", err)
		} else {
			router.Bind(req.SubmissionUuid, sqsSink)
		}
	}

	_, err = svc.SubmitAs(ctx, req.SubmissionUuid, req.User, req.ProblemID, req.LangID, req.Code)
	if err != nil {
		logger.Warn("submission rejected", "id", req.SubmissionUuid, "error", err)
		// the router forwards to any bound per-request sink and unbinds it
		sink.FinishEvaluation(req.SubmissionUuid, api.VerdictInternalError, err.Error())
	}
}

func materializeProblem(fs *filestore.Store, req *api.JudgeRequest) (*problems.Problem, error) {
	if req.CpuMillis <= 0 {
		return nil, fmt.Errorf("request has no cpu limit")
	}
	if req.MemoryKiB <= 0 {
		return nil, fmt.Errorf("request has no memory limit")
	}

	prob := &problems.Problem{
		ID: req.ProblemID,
		Limits: problems.Limits{
			CpuSec:    float64(req.CpuMillis) / 1000.0,
			MemoryKiB: req.MemoryKiB,
		},
		AllowedLangIDs:   mapset.NewSet[string](req.AllowedLangIDs...),
		SubmitCooldown:   time.Duration(req.SubmitCooldownSec) * time.Second,
		GenerateCooldown: time.Duration(req.GenerateCooldownSec) * time.Second,
		Validator:        scriptFromReq(req.Validator),
		Generator:        scriptFromReq(req.Generator),
	}

	for _, t := range req.Tests {
		inPath, err := resolveFile(fs, t.InSha256, t.InUrl, t.InContent)
		if err != nil {
			return nil, fmt.Errorf("test %d input: %w", t.ID, err)
		}
		ansPath, err := resolveFile(fs, t.AnsSha256, t.AnsUrl, t.AnsContent)
		if err != nil {
			return nil, fmt.Errorf("test %d answer: %w", t.ID, err)
		}
		prob.Tests = append(prob.Tests, problems.TestCase{
			Ordinal:    t.ID,
			InputPath:  inPath,
			AnswerPath: ansPath,
		})
	}

	return prob, nil
}

func resolveFile(fs *filestore.Store, sha, url, content *string) (string, error) {
	if content != nil {
		key, err := fs.SaveContent([]byte(*content))
		if err != nil {
			return "", err
		}
		return fs.Path(key), nil
	}
	if sha == nil || url == nil {
		return "", fmt.Errorf("test file needs either inline content or sha256 and url")
	}
	if err := fs.Schedule(*sha, *url); err != nil {
		return "", err
	}
	if _, err := fs.Await(*sha); err != nil {
		return "", err
	}
	return fs.Path(*sha), nil
}

func scriptFromReq(s *api.Script) *problems.Script {
	if s == nil {
		return nil
	}
	return &problems.Script{
		Code:   s.Code,
		LangID: s.LangID,
		Limits: problems.Limits{
			CpuSec:    float64(s.CpuMillis) / 1000.0,
			MemoryKiB: s.MemoryKiB,
		},
	}
}

func runEval(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger()

	dir, err := os.MkdirTemp("", "judge-scenarios-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	suite, err := scenario.Parse(cmd.String("file"), dir)
	if err != nil {
		return err
	}

	exec := sandbox.NewIsolateExecutor(logger)
	compiler := compile.New(exec, logger)
	st := store.NewMemStore()
	engine := judge.NewEngine(exec, compiler, suite.Langs, st, events.NewTermSink(), logger)

	failed := 0
	for _, c := range suite.Cases {
		sub := &store.Submission{
			ID:        uuid.New().String(),
			Owner:     "scenario",
			ProblemID: c.Problem.ID,
			LangID:    c.LangID,
			Source:    c.Code,
		}
		if err := st.Create(ctx, sub); err != nil {
			return err
		}
		engine.Judge(ctx, sub, &c.Problem)

		got, err := st.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		verdicts := make([]string, 0, len(got.TestResults))
		for _, tr := range got.TestResults {
			verdicts = append(verdicts, string(tr.Verdict))
		}
		if err := c.Expect.Matches(string(got.Verdict), verdicts); err != nil {
			color.Red("FAIL %s: %v", c.Name, err)
			failed++
		} else {
			color.Green("OK   %s (%s)", c.Name, got.Verdict)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(suite.Cases))
	}
	return nil
}
