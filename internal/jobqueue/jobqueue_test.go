package jobqueue

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReviewJobArgsKind(t *testing.T) {
	assert.Equal(t, "review", ReviewJobArgs{}.Kind())
}

func TestStatusTrackerReportsUnknownIDAsAbsent(t *testing.T) {
	tracker := newStatusTracker()
	_, _, ok := tracker.get(uuid.New())
	assert.False(t, ok)
}

func TestStatusTrackerTracksTransitions(t *testing.T) {
	tracker := newStatusTracker()
	id := uuid.New()

	tracker.set(id, StatusInProgress, "queued")
	status, _, ok := tracker.get(id)
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, status)

	tracker.set(id, StatusCompleted, "")
	status, _, ok = tracker.get(id)
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, status)
}

func TestReviewWorkerRecordsFailureStatus(t *testing.T) {
	tracker := newStatusTracker()
	id := uuid.New()
	tracker.set(id, StatusInProgress, "queued")

	// Simulate the failure branch of Work directly, since Work requires a
	// concrete *service.Service; the status bookkeeping under test here is
	// the same statusTracker exercised by Work's error path.
	err := errors.New("fetch failed")
	tracker.set(id, StatusFailed, err.Error())

	status, detail, ok := tracker.get(id)
	assert.True(t, ok)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, "fetch failed", detail)
}

func TestDefaultQueueConfigHasPositiveWorkerCount(t *testing.T) {
	cfg := DefaultQueueConfig()
	assert.Greater(t, cfg.MaxWorkers, 0)
	assert.Greater(t, cfg.MaxRetries, 0)
}

func TestDevelopmentQueueConfigIsLighterThanDefault(t *testing.T) {
	dev := DevelopmentQueueConfig()
	def := DefaultQueueConfig()
	assert.Less(t, dev.MaxWorkers, def.MaxWorkers)
	assert.Less(t, dev.RetryPolicy.MaxElapsedTime, def.RetryPolicy.MaxElapsedTime)
}
