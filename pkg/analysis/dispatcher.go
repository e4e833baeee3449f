package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dispatcher defaults.
const (
	DefaultConcurrency = 4
	DefaultTaskTimeout = 10 * time.Second
)

// Recorder observes completed analysis tasks.
type Recorder interface {
	ObserveAnalysis(kind string, d time.Duration, failed bool)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Concurrency caps the tasks running at once for one dispatch.
	Concurrency int

	// TaskTimeout bounds each task.
	TaskTimeout time.Duration

	Logger   *slog.Logger
	Recorder Recorder
}

// Dispatcher runs analyzers concurrently over a batch.
type Dispatcher struct {
	analyzers   []Analyzer
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	recorder    Recorder
}

// NewDispatcher creates a Dispatcher over analyzers.
func NewDispatcher(cfg DispatcherConfig, analyzers ...Analyzer) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		analyzers:   analyzers,
		concurrency: cfg.Concurrency,
		timeout:     cfg.TaskTimeout,
		logger:      cfg.Logger.With("component", "analysis"),
		recorder:    cfg.Recorder,
	}
}

// Kinds returns the kinds this dispatcher runs, in registration order.
func (d *Dispatcher) Kinds() []Kind {
	kinds := make([]Kind, 0, len(d.analyzers))
	for _, a := range d.analyzers {
		kinds = append(kinds, a.Kind())
	}
	return kinds
}

// Dispatch runs the analyzers named in only (all of them when only is empty)
// over in and calls deliver once per analyzer as each finishes. deliver may
// be called from several goroutines at once. Dispatch returns after every
// task has been delivered, or early with no further deliveries once ctx is
// cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input, only []Kind, deliver func(Result)) {
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, a := range d.analyzersFor(only) {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := d.run(ctx, a, in)
			if ctx.Err() != nil {
				return nil
			}
			deliver(res)
			return nil // failures are reported as degraded payloads
		})
	}

	_ = g.Wait()
}

func (d *Dispatcher) analyzersFor(only []Kind) []Analyzer {
	if len(only) == 0 {
		return d.analyzers
	}
	want := make(map[Kind]struct{}, len(only))
	for _, k := range only {
		want[k] = struct{}{}
	}
	out := make([]Analyzer, 0, len(only))
	for _, a := range d.analyzers {
		if _, ok := want[a.Kind()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// run executes one analyzer, converting errors and panics into a degraded
// result.
func (d *Dispatcher) run(ctx context.Context, a Analyzer, in Input) (res Result) {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("analyzer %s panicked: %v", a.Kind(), r)
			res = Result{Kind: a.Kind(), Payload: a.Degraded(in, err), Err: err}
		}
		if res.Err != nil {
			d.logger.Warn("analysis failed", "kind", string(a.Kind()), "error", res.Err)
		}
		if d.recorder != nil {
			d.recorder.ObserveAnalysis(string(a.Kind()), time.Since(start), res.Err != nil)
		}
	}()

	payload, err := a.Analyze(taskCtx, in)
	if err != nil {
		return Result{Kind: a.Kind(), Payload: a.Degraded(in, err), Err: err}
	}
	return Result{Kind: a.Kind(), Payload: payload}
}
