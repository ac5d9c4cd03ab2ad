// Package service implements the Review Service (spec.md §4.H): the
// end-to-end controller that drives fetch → parse → orchestrate →
// aggregate → persist and returns a ReviewResult.
//
// Grounded on the teacher's internal/review/service.go, whose ProcessReview
// method drives create-provider → create-ai-provider → execute-workflow →
// post-results with heavy section-by-section ReviewLogger output; this
// keeps that five-step, heavily-logged shape and retargets each step to
// the new pipeline.
package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/livereview-cr/livereview-cr/internal/aggregate"
	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/diffparse"
	"github.com/livereview-cr/livereview-cr/internal/fetch"
	"github.com/livereview-cr/livereview-cr/internal/logging"
	"github.com/livereview-cr/livereview-cr/internal/orchestrator"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// Store is the subset of internal/store.Store the service depends on.
type Store interface {
	Save(ctx context.Context, r reviewmodel.ReviewResult) (uuid.UUID, error)
}

// Service wires the Change Fetcher, Diff Parser, Orchestrator,
// Aggregator/Formatter, and Review Store into the single
// review(change_source, config) operation spec.md §4.H describes.
type Service struct {
	fetcher      fetch.Fetcher
	orchestrator *orchestrator.Orchestrator
	store        Store
}

// New builds a Service from its collaborators.
func New(fetcher fetch.Fetcher, orch *orchestrator.Orchestrator, st Store) *Service {
	return &Service{fetcher: fetcher, orchestrator: orch, store: st}
}

// Review runs the full pipeline for source under config (nil uses
// reviewmodel.DefaultReviewConfig), persists the result, and returns it.
// A fresh review id is generated for each call.
func (s *Service) Review(ctx context.Context, source reviewmodel.ChangeSource, config *reviewmodel.ReviewConfig) (*reviewmodel.ReviewResult, error) {
	return s.ReviewWithID(ctx, uuid.New(), source, config)
}

// ReviewWithID runs the pipeline under a caller-supplied review id, so an
// asynchronous caller (internal/jobqueue) can know the id before the job
// completes and report its status via that id in the meantime.
func (s *Service) ReviewWithID(ctx context.Context, reviewID uuid.UUID, source reviewmodel.ChangeSource, config *reviewmodel.ReviewConfig) (*reviewmodel.ReviewResult, error) {
	cfg := reviewmodel.DefaultReviewConfig()
	if config != nil {
		cfg = *config
	}

	logger, _ := logging.Start(reviewID.String())
	defer logger.Close()

	reviewCtx := ctx
	var cancel context.CancelFunc
	if cfg.ReviewTimeout > 0 {
		reviewCtx, cancel = context.WithTimeout(ctx, cfg.ReviewTimeout)
		defer cancel()
	}

	// Step 1: fetch.
	logger.EmitStageStarted(logging.StageFetch)
	metadata, diffText, err := s.fetcher.Fetch(reviewCtx, source)
	if err != nil {
		logger.EmitStageError(logging.StageFetch, err)
		return nil, err
	}
	logger.EmitStageCompleted(logging.StageFetch, "diff retrieved")

	// Step 2: parse. A blank diff (no changes at all) still produces a
	// completed review with zero findings per spec.md §4.H step 2, rather
	// than propagating the parser's "empty diff" error.
	logger.EmitStageStarted(logging.StageParse)
	var parsed *reviewmodel.ParsedDiff
	if strings.TrimSpace(diffText) == "" {
		parsed = &reviewmodel.ParsedDiff{}
	} else {
		parsed, err = diffparse.Parse(diffText)
		if err != nil {
			logger.EmitStageError(logging.StageParse, err)
			return nil, err
		}
	}
	logger.EmitStageCompleted(logging.StageParse, "diff parsed")

	if reviewCtx.Err() != nil {
		return nil, &apperrors.Cancelled{Message: "review timed out during fetch/parse"}
	}

	// Step 3: orchestrate.
	logger.EmitStageStarted(logging.StageOrchestrate)
	rc := &reviewmodel.ReviewContext{
		FileChanges: parsed.Files,
		Config:      cfg,
		Metadata:    metadata,
	}
	findings, failures := s.orchestrator.Run(reviewCtx, rc)
	logger.EmitStageCompleted(logging.StageOrchestrate, pluralize(len(findings), "finding")+", "+pluralize(len(failures), "failure"))

	if reviewCtx.Err() == context.DeadlineExceeded {
		return nil, &apperrors.Cancelled{Message: "review-level deadline exceeded"}
	}

	// Step 4: aggregate.
	logger.EmitStageStarted(logging.StageAggregate)
	agg := aggregate.Run(findings, parsed, cfg)
	logger.EmitStageCompleted(logging.StageAggregate, "report rendered")

	result := reviewmodel.ReviewResult{
		ReviewID:    reviewID,
		Metadata:    metadata,
		Config:      cfg,
		Findings:    agg.Findings,
		Summary:     agg.Summary,
		Diagnostics: failures,
		Timestamp:   now(),
	}
	if metadata != nil {
		result.CommitSHA = metadata.HeadCommitSHA
	}

	// Step 5: persist.
	logger.EmitStageStarted(logging.StagePersist)
	if _, err := s.store.Save(reviewCtx, result); err != nil {
		logger.EmitStageError(logging.StagePersist, err)
		return nil, &apperrors.StorageError{Message: "failed to persist review", Cause: err}
	}
	logger.EmitStageCompleted(logging.StagePersist, "review persisted")

	return &result, nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// now is a seam so tests can pin the persisted timestamp.
var now = time.Now
