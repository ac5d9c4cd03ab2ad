// Package orchestrator fans every enabled analyzer out concurrently over a
// shared ReviewContext, isolates per-analyzer failures, and imposes the
// final deterministic finding order. Adapted from the errgroup-based
// per-agent fan-out pattern seen across the retrieval pack (every worker
// goroutine always returns nil to the errgroup; failures are captured into
// a mutex-protected slice instead), generalized to the fixed four-category
// analyzer set and per-analyzer deadlines spec.md §4.E and §5 require.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livereview-cr/livereview-cr/internal/analyzer"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

const defaultAnalyzerTimeout = 300 * time.Second

// Orchestrator runs a fixed set of analyzers over a ReviewContext.
type Orchestrator struct {
	analyzers []analyzer.Analyzer
}

// New builds an Orchestrator over the given built-in analyzers. Selection
// against config.enabled_categories happens per-run in Run, not here, so a
// single Orchestrator instance can serve reviews with differing configs.
func New(analyzers ...analyzer.Analyzer) *Orchestrator {
	return &Orchestrator{analyzers: analyzers}
}

// Run starts every analyzer whose category is enabled in rc.Config
// concurrently, each bounded by its own deadline. It awaits all of them and
// never cancels one analyzer because another failed. The returned findings
// are in the final deterministic order from reviewmodel.SortFindings.
func (o *Orchestrator) Run(ctx context.Context, rc *reviewmodel.ReviewContext) ([]reviewmodel.Finding, []reviewmodel.AnalyzerFailure) {
	timeout := rc.Config.AnalyzerTimeout
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}

	active := make([]analyzer.Analyzer, 0, len(o.analyzers))
	for _, a := range o.analyzers {
		if rc.Config.CategoryEnabled(a.Category()) {
			active = append(active, a)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var findings []reviewmodel.Finding
	var failures []reviewmodel.AnalyzerFailure

	for _, a := range active {
		a := a
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failures = append(failures, reviewmodel.AnalyzerFailure{
						Category: a.Category(),
						Kind:     "panic",
						Message:  fmt.Sprintf("analyzer panicked: %v", r),
					})
					mu.Unlock()
				}
			}()

			analyzerCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			result, failure := a.Analyze(analyzerCtx, rc)
			if failure == nil && analyzerCtx.Err() == context.DeadlineExceeded {
				failure = &reviewmodel.AnalyzerFailure{
					Category: a.Category(),
					Kind:     "timeout",
					Message:  "analyzer exceeded its deadline",
				}
				result = nil
			}

			mu.Lock()
			if failure != nil {
				failures = append(failures, *failure)
			} else {
				findings = append(findings, result...)
			}
			mu.Unlock()

			// Per-analyzer failures never abort the group; only a caller
			// cancellation of the outer ctx should.
			return nil
		})
	}

	_ = g.Wait()

	reviewmodel.SortFindings(findings)
	return findings, failures
}
