package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func createTestWatchdog(used float64, usageErr error) (*Watchdog, *MockWebhookRepository) {
	repo := new(MockWebhookRepository)
	w := NewWatchdog(repo, WatchdogConfig{DiskThreshold: 70, Retention: 24 * time.Hour})
	w.usage = func(context.Context, string) (float64, error) { return used, usageErr }
	w.now = func() time.Time { return fixedNow }
	return w, repo
}

func TestWatchdog_BelowThresholdDoesNothing(t *testing.T) {
	w, repo := createTestWatchdog(40, nil)

	assert.Equal(t, int64(0), w.CheckOnce(context.Background()))
	repo.AssertNotCalled(t, "PurgeProcessedBefore")
}

func TestWatchdog_AboveThresholdPurgesOldLogs(t *testing.T) {
	w, repo := createTestWatchdog(85, nil)
	ctx := context.Background()

	repo.On("PurgeProcessedBefore", ctx, fixedNow.Add(-24*time.Hour)).Return(int64(12), nil)

	assert.Equal(t, int64(12), w.CheckOnce(ctx))
	repo.AssertExpectations(t)
}

func TestWatchdog_DiskErrorSkipsPurge(t *testing.T) {
	w, repo := createTestWatchdog(0, errors.New("no such path"))

	assert.Equal(t, int64(0), w.CheckOnce(context.Background()))
	repo.AssertNotCalled(t, "PurgeProcessedBefore")
}

func TestWatchdog_Defaults(t *testing.T) {
	w := NewWatchdog(new(MockWebhookRepository), WatchdogConfig{})

	assert.Equal(t, 10*time.Minute, w.cfg.Interval)
	assert.Equal(t, "/", w.cfg.DiskPath)
	assert.Equal(t, float64(70), w.cfg.DiskThreshold)
	assert.Equal(t, 7*24*time.Hour, w.cfg.Retention)
}

func TestWatchdog_RunStopsOnCancel(t *testing.T) {
	w, _ := createTestWatchdog(10, nil)
	w.cfg.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop")
	}
}
