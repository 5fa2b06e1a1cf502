package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cesargomez89/odyvault/internal/logger"
	"github.com/cesargomez89/odyvault/internal/store"
)

// Sweeper removes expired cache entries.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Maintainer runs a full maintenance pass.
type Maintainer interface {
	RunMaintenance(ctx context.Context) (*store.MaintenanceReport, error)
}

// Worker periodically sweeps the cache and runs database maintenance.
type Worker struct {
	Sweeper             Sweeper
	Maintainer          Maintainer
	SweepInterval       time.Duration
	MaintenanceInterval time.Duration
	Logger              *logger.Logger
	wg                  sync.WaitGroup
	ctx                 context.Context
	cancel              context.CancelFunc
}

func NewWorker(sweeper Sweeper, maintainer Maintainer, sweepEvery, maintainEvery time.Duration, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		Sweeper:             sweeper,
		Maintainer:          maintainer,
		SweepInterval:       sweepEvery,
		MaintenanceInterval: maintainEvery,
		Logger:              log.WithComponent("worker"),
		ctx:                 ctx,
		cancel:              cancel,
	}
}

// Start launches one loop per enabled task. A non-positive interval disables
// that task.
func (w *Worker) Start() {
	w.Logger.Info("Starting worker",
		"sweep_interval", w.SweepInterval,
		"maintenance_interval", w.MaintenanceInterval)

	if w.SweepInterval > 0 && w.Sweeper != nil {
		w.wg.Add(1)
		go w.loop("sweep", w.SweepInterval, w.sweep)
	}
	if w.MaintenanceInterval > 0 && w.Maintainer != nil {
		w.wg.Add(1)
		go w.loop("maintenance", w.MaintenanceInterval, w.maintain)
	}
}

// Stop cancels the loops and waits for a running pass to finish.
func (w *Worker) Stop() {
	w.Logger.Info("Stopping worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop(name string, every time.Duration, run func(context.Context)) {
	defer w.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.safeRun(name, run)
		}
	}
}

func (w *Worker) safeRun(name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.Error("Panic in worker task", "task", name, "panic", r)
		}
	}()
	run(w.ctx)
}

func (w *Worker) sweep(ctx context.Context) {
	n, err := w.Sweeper.SweepExpired(ctx)
	if err != nil {
		w.Logger.Error("Cache sweep failed", "error", err)
		return
	}
	if n > 0 {
		w.Logger.Debug("Swept expired cache entries", "count", n)
	}
}

func (w *Worker) maintain(ctx context.Context) {
	report, err := w.Maintainer.RunMaintenance(ctx)
	if err != nil {
		w.Logger.Error("Maintenance failed", "error", err)
		return
	}
	for _, step := range report.Steps {
		switch {
		case step.Skipped:
			w.Logger.Debug("Maintenance step skipped", "step", step.Name)
		case step.Err != nil:
			w.Logger.Error("Maintenance step failed", "step", step.Name, "error", step.Err)
		default:
			w.Logger.Info("Maintenance step done", "step", step.Name, "affected", step.Affected, "duration", step.Duration)
		}
	}
}
