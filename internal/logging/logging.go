// Package logging provides the two logging surfaces the pipeline uses: a
// process-wide structured logger backed by zerolog, and a per-review
// logger that writes a review-scoped log file and mirrors lines to the
// process-wide logger,
// generalized from the teacher's internal/logging/review_logger.go (which
// tracked webhook post-comment stages) to the five review pipeline stages
// in SPEC_FULL.md: fetch, parse, orchestrate, aggregate, persist.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Base is the process-wide zerolog logger used by the HTTP layer and
// cmd/ entrypoints, matching the teacher's zerolog usage in
// internal/aiconnectors.
var Base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// SetLevel adjusts the process-wide logger's minimum level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Stage names used by ReviewLogger.EmitStageStarted/Completed/Error.
const (
	StageFetch       = "Fetch"
	StageParse       = "Parse"
	StageOrchestrate = "Orchestrate"
	StageAggregate   = "Aggregate"
	StagePersist     = "Persist"
)

// ReviewLogger writes a review-scoped log file and mirrors every line to
// the process-wide logger, the way the teacher's ReviewLogger mirrored to
// stdout. One instance is created per Service.ReviewWithID call.
type ReviewLogger struct {
	reviewID  string
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

// dir is the directory review log files are written under. A package
// variable rather than a constant so tests can redirect it.
var dir = "review_logs"

// Start begins logging for a single review run, identified by reviewID
// (its eventual ReviewResult.ReviewID, as a string).
func Start(reviewID string) (*ReviewLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(dir, fmt.Sprintf("review_%s_%s.log", reviewID, timestamp))

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	rl := &ReviewLogger{reviewID: reviewID, logFile: logFile, startTime: time.Now()}
	rl.LogSection("REVIEW STARTED")
	rl.Log("review_id=%s", reviewID)
	return rl, nil
}

// Log writes one timestamped line to the review log file and to the
// process-wide logger.
func (r *ReviewLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	message := fmt.Sprintf(format, args...)
	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	line := fmt.Sprintf("[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), elapsed, message)

	if r.logFile != nil {
		r.logFile.WriteString(line)
		r.logFile.Sync()
	}
	Base.Info().Str("review_id", r.reviewID).Msg(message)
}

// LogSection writes a banner line, matching the teacher's section-header
// style used to delimit each pipeline stage's log output.
func (r *ReviewLogger) LogSection(title string) {
	if r == nil {
		return
	}
	separator := "================================================================================"
	r.Log(separator)
	r.Log("= %s", title)
	r.Log(separator)
}

// EmitStageStarted/EmitStageCompleted/EmitStageError bracket one of the
// five pipeline stages, the way the teacher bracketed
// Preparation/Analysis/Artifact Generation.
func (r *ReviewLogger) EmitStageStarted(stage string) {
	r.Log("stage=%s status=started", stage)
}

func (r *ReviewLogger) EmitStageCompleted(stage string, detail string) {
	r.Log("stage=%s status=completed detail=%s", stage, detail)
}

func (r *ReviewLogger) EmitStageError(stage string, err error) {
	r.Log("stage=%s status=error error=%v", stage, err)
}

// Close finalizes the review log file.
func (r *ReviewLogger) Close() {
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.logFile != nil {
		r.logFile.WriteString(fmt.Sprintf("[%s] review logging completed, total duration %v\n",
			time.Now().Format("15:04:05.000"), time.Since(r.startTime)))
		r.logFile.Close()
		r.logFile = nil
	}
}
