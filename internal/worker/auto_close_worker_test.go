package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk-service/internal/config"
)

type fakeCloser struct {
	cutoff   time.Time
	batch    int
	deadline bool
	calls    int
	closed   int
	err      error
}

func (f *fakeCloser) AutoCloseResolved(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	f.calls++
	f.cutoff = cutoff
	f.batch = batchSize
	_, f.deadline = ctx.Deadline()
	return f.closed, f.err
}

func lifecycleConfig() config.LifecycleConfig {
	return config.LifecycleConfig{
		AutoCloseEnabled:   true,
		AutoCloseAfterDays: 7,
		AutoCloseSchedule:  "0 0 * * * *",
		AutoCloseBatchSize: 50,
	}
}

func TestRunOnceUsesGracePeriodCutoff(t *testing.T) {
	closer := &fakeCloser{closed: 3}
	w := NewAutoCloseWorker(closer, lifecycleConfig(), nil)
	now := time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	closed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, closed)
	assert.Equal(t, now.Add(-7*24*time.Hour), closer.cutoff)
	assert.Equal(t, 50, closer.batch)
	assert.True(t, closer.deadline, "each run carries a timeout")
}

func TestTickSwallowsErrors(t *testing.T) {
	closer := &fakeCloser{err: errors.New("database unavailable")}
	w := NewAutoCloseWorker(closer, lifecycleConfig(), nil)

	assert.NotPanics(t, func() { w.tick(context.Background()) })
	assert.Equal(t, 1, closer.calls)
	assert.False(t, w.running)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	cfg := lifecycleConfig()
	cfg.AutoCloseSchedule = "every tuesday"
	w := NewAutoCloseWorker(&fakeCloser{}, cfg, nil)
	assert.Error(t, w.Start(context.Background()))

	cfg = lifecycleConfig()
	cfg.AutoCloseAfterDays = 0
	w = NewAutoCloseWorker(&fakeCloser{}, cfg, nil)
	assert.Error(t, w.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewAutoCloseWorker(&fakeCloser{}, lifecycleConfig(), nil)

	require.NoError(t, w.Start(ctx))
	assert.Len(t, w.cron.Entries(), 1)
	w.Stop()
	w.Stop()
}
