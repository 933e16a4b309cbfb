package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spectrumoj/judge/api"
	"github.com/spectrumoj/judge/internal/cooldown"
	"github.com/spectrumoj/judge/internal/generator"
	"github.com/spectrumoj/judge/internal/judge"
	"github.com/spectrumoj/judge/internal/problems"
	"github.com/spectrumoj/judge/internal/queue"
	"github.com/spectrumoj/judge/internal/store"
)

var ErrUnsupportedLanguage = errors.New("language is not allowed for this problem")

// CooldownError reports how long the caller has to wait before retrying.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// Service ties the submission pipeline together: it accepts submissions,
// hands them to the judging queue, and answers status queries.
type Service struct {
	store    store.SubmissionStore
	problems problems.Source
	queue    *queue.Queue
	engine   *judge.Engine
	gen      *generator.Runner
	guard    *cooldown.Guard
	logger   *slog.Logger
}

func New(
	st store.SubmissionStore,
	src problems.Source,
	q *queue.Queue,
	engine *judge.Engine,
	gen *generator.Runner,
	guard *cooldown.Guard,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		problems: src,
		queue:    q,
		engine:   engine,
		gen:      gen,
		guard:    guard,
		logger:   logger,
	}
}

// Submit validates and enqueues a submission, returning its id. The
// submission is judged asynchronously by the worker pool.
func (s *Service) Submit(ctx context.Context, user, problemID, langID, source string) (string, error) {
	return s.SubmitAs(ctx, uuid.New().String(), user, problemID, langID, source)
}

// SubmitAs is Submit with a caller-chosen id, used when the id was minted
// upstream (the daemon wire format carries one).
func (s *Service) SubmitAs(ctx context.Context, id, user, problemID, langID, source string) (string, error) {
	prob, err := s.problems.Problem(ctx, problemID)
	if err != nil {
		return "", err
	}
	if !prob.Allows(langID) {
		return "", ErrUnsupportedLanguage
	}

	allowed, retryAfter := s.guard.Allow(user, problemID, cooldown.KindSubmit, prob.SubmitCooldown)
	if !allowed {
		return "", &CooldownError{RetryAfter: retryAfter}
	}

	sub := &store.Submission{
		ID:        id,
		Owner:     user,
		ProblemID: problemID,
		LangID:    langID,
		Source:    source,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		s.guard.Revoke(user, problemID, cooldown.KindSubmit)
		return "", err
	}

	if err := s.queue.Enqueue(sub.ID); err != nil {
		// the rejection is not the user's doing, give the window back
		s.guard.Revoke(user, problemID, cooldown.KindSubmit)
		s.failSubmission(ctx, sub.ID, err)
		return "", err
	}

	s.logger.Info("submission accepted",
		"id", sub.ID, "user", user, "problem", problemID, "lang", langID)
	return sub.ID, nil
}

// GetStatus returns the current state of a submission, including any test
// results produced so far.
func (s *Service) GetStatus(ctx context.Context, id string) (*api.SubmissionStatus, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := sub.Status()
	return &status, nil
}

// ListStatuses returns an owner's submissions, newest first.
func (s *Service) ListStatuses(ctx context.Context, owner string) ([]api.SubmissionStatus, error) {
	subs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	statuses := make([]api.SubmissionStatus, 0, len(subs))
	for _, sub := range subs {
		statuses = append(statuses, sub.Status())
	}
	return statuses, nil
}

// RequestSample runs the problem's generator and returns a sample
// input/output pair. Sample requests have their own cooldown window.
func (s *Service) RequestSample(ctx context.Context, user, problemID string) (in, out string, err error) {
	prob, err := s.problems.Problem(ctx, problemID)
	if err != nil {
		return "", "", err
	}
	if prob.Generator == nil {
		return "", "", generator.ErrNoGenerator
	}

	allowed, retryAfter := s.guard.Allow(user, problemID, cooldown.KindSample, prob.GenerateCooldown)
	if !allowed {
		return "", "", &CooldownError{RetryAfter: retryAfter}
	}

	sampleIn, sampleOut, err := s.gen.Generate(ctx, prob)
	if err != nil {
		return "", "", err
	}
	return string(sampleIn), string(sampleOut), nil
}

// Process judges a single queued submission. It satisfies queue.Processor.
func (s *Service) Process(ctx context.Context, submissionID string) error {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	prob, err := s.problems.Problem(ctx, sub.ProblemID)
	if err != nil {
		return err
	}
	s.engine.Judge(ctx, sub, prob)
	return nil
}

// OnFailure marks a submission as internal-error when its worker gave up.
// It satisfies queue.Failure.
func (s *Service) OnFailure(submissionID string, cause error) {
	s.logger.Error("judging failed", "id", submissionID, "error", cause)
	s.failSubmission(context.Background(), submissionID, cause)
}

func (s *Service) failSubmission(ctx context.Context, id string, cause error) {
	err := s.store.Finish(ctx, id, api.VerdictInternalError, "", 0, 0)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to record internal error",
			"id", id, "cause", cause, "error", err)
	}
}
