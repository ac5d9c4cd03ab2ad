/*
Package jobqueue configuration - tunable parameters for the River-backed
review job queue.

Adapted from the teacher's queue_config.go, which held MaxWorkers/
MaxRetries/RetryPolicy/JobTimeout knobs for webhook installation jobs.
The worker-pool and retry knobs are kept verbatim in shape; the
GitLab/webhook-specific configuration they carried is dropped since
GitLab access now lives in internal/config.Config.GitLab, not here.
*/
package jobqueue

import "time"

// QueueConfig holds the tunable parameters for the review job queue.
// New passes only MaxWorkers to the River client; MaxRetries, RetryPolicy,
// JobTimeout and QueueTimeout are carried here but not applied, so River's
// own retry and timeout defaults govern review jobs.
type QueueConfig struct {
	// MaxWorkers is the number of concurrent workers processing review
	// jobs.
	MaxWorkers int

	// MaxRetries is the maximum retry attempts per failed review job.
	MaxRetries int

	// RetryPolicy controls retry timing and backoff.
	RetryPolicy RetryPolicy

	// JobTimeout is the maximum time a single review job may run before
	// River considers it stuck. This is independent of, and normally
	// looser than, reviewmodel.ReviewConfig.ReviewTimeout, which bounds
	// the pipeline's own internal deadline.
	JobTimeout time.Duration

	// QueueTimeout is the maximum time a job can sit queued before it is
	// treated as expired.
	QueueTimeout time.Duration
}

// RetryPolicy defines how failed review jobs are retried.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultQueueConfig returns sensible defaults for production use.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 10,
		MaxRetries: 5,
		RetryPolicy: RetryPolicy{
			InitialInterval: 1 * time.Second,
			MaxInterval:     5 * time.Minute,
			Multiplier:      2.0,
			MaxElapsedTime:  1 * time.Hour,
		},
		JobTimeout:   10 * time.Minute,
		QueueTimeout: 24 * time.Hour,
	}
}

// DevelopmentQueueConfig trades reliability for faster feedback: fewer
// workers, fewer retries, shorter timeouts.
func DevelopmentQueueConfig() *QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.MaxWorkers = 2
	cfg.MaxRetries = 2
	cfg.RetryPolicy.MaxElapsedTime = 5 * time.Minute
	cfg.JobTimeout = 2 * time.Minute
	return cfg
}
