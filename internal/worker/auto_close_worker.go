package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/config"
)

const defaultRunTimeout = 2 * time.Minute

type ticketAutoCloser interface {
	AutoCloseResolved(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// AutoCloseWorker periodically closes tickets that stayed resolved past the
// configured grace period.
type AutoCloseWorker struct {
	closer     ticketAutoCloser
	cron       *cron.Cron
	schedule   string
	after      time.Duration
	batchSize  int
	runTimeout time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewAutoCloseWorker builds the worker. Schedules use six fields, seconds first.
func NewAutoCloseWorker(closer ticketAutoCloser, cfg config.LifecycleConfig, logger *zap.Logger) *AutoCloseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := cfg.AutoCloseBatchSize
	if batch <= 0 {
		batch = 200
	}
	return &AutoCloseWorker{
		closer:     closer,
		cron:       cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		schedule:   cfg.AutoCloseSchedule,
		after:      cfg.AutoCloseAfter(),
		batchSize:  batch,
		runTimeout: defaultRunTimeout,
		logger:     logger.Named("auto-close"),
		now:        time.Now,
	}
}

// Start registers the job and starts the scheduler. It stops when ctx is done.
func (w *AutoCloseWorker) Start(ctx context.Context) error {
	if w.after <= 0 {
		return errors.New("auto-close grace period must be positive")
	}
	if _, err := w.cron.AddFunc(w.schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid auto-close schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Info("auto-close worker started",
		zap.String("schedule", w.schedule),
		zap.Duration("after", w.after))

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (w *AutoCloseWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()
	<-w.cron.Stop().Done()
}

// RunOnce closes one batch of tickets resolved before now minus the grace period.
func (w *AutoCloseWorker) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()
	cutoff := w.now().Add(-w.after)
	return w.closer.AutoCloseResolved(runCtx, cutoff, w.batchSize)
}

// tick skips a run while the previous one is still in flight.
func (w *AutoCloseWorker) tick(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("previous auto-close run still in progress")
		return
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	started := w.now()
	closed, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("auto-close run failed", zap.Int("closed", closed), zap.Error(err))
		return
	}
	w.logger.Info("auto-close run finished",
		zap.Int("closed", closed),
		zap.Duration("took", w.now().Sub(started)))
}
