package hypervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
)

// Outcome classifies a dispatched command.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	// OutcomePending means the timeout expired before the hypervisor answered.
	OutcomePending Outcome = "pending"
)

// Result reports how a dispatched command ended.
type Result struct {
	Command  Command
	Outcome  Outcome
	Observed lifecycle.Status
	Err      error
	Duration time.Duration
	// Abandoned is set when the timeout fired while the controller was
	// still running. The worker moves on without waiting for it.
	Abandoned bool
}

// Reporter receives every result. It runs on a dispatcher worker.
type Reporter func(ctx context.Context, res Result)

// DispatcherConfig tunes a [Dispatcher]. BufferSize is shared out evenly
// across the per-worker queues.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

const (
	DefaultWorkers    = 4
	DefaultBufferSize = 256
	DefaultTimeout    = 30 * time.Second
)

// ErrQueueFull is returned by Submit when the buffer is full or the
// dispatcher is closed.
var ErrQueueFull = errors.New("hypervisor dispatch queue full")

// Dispatcher runs commands asynchronously on a fixed worker pool. Every
// VPS is pinned to one worker, so commands for the same VPS reach the
// controller one at a time and in submission order.
//
// Controllers must return once the context passed to Execute is done. A
// controller that ignores it keeps running after the timeout; such calls
// are counted by [Dispatcher.Abandoned] and may overlap the next command
// for the same VPS.
type Dispatcher struct {
	cfg        DispatcherConfig
	controller Controller
	report     Reporter

	queues    []chan Command
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	abandoned atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	// submitMu orders Submit against Close so no send races the shutdown.
	submitMu sync.RWMutex
}

// NewDispatcher starts the worker pool. A nil controller is replaced by
// [NoopController]; a nil reporter discards results.
func NewDispatcher(controller Controller, cfg DispatcherConfig, report Reporter) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if controller == nil {
		controller = NoopController{}
	}
	if report == nil {
		report = func(context.Context, Result) {}
	}

	perWorker := (cfg.BufferSize + cfg.Workers - 1) / cfg.Workers
	d := &Dispatcher{
		cfg:        cfg,
		controller: controller,
		report:     report,
		queues:     make([]chan Command, cfg.Workers),
		done:       make(chan struct{}),
	}
	for i := range d.queues {
		d.queues[i] = make(chan Command, perWorker)
		d.wg.Add(1)
		go d.run(d.queues[i])
	}
	return d
}

func (d *Dispatcher) run(ch <-chan Command) {
	defer d.wg.Done()

	for {
		select {
		case cmd := <-ch:
			d.execute(cmd)
		case <-d.done:
			for {
				select {
				case cmd := <-ch:
					d.execute(cmd)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) queueFor(vpsID int64) chan Command {
	n := int64(len(d.queues))
	i := vpsID % n
	if i < 0 {
		i += n
	}
	return d.queues[i]
}

func (d *Dispatcher) execute(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	started := time.Now()
	type answer struct {
		observed lifecycle.Status
		err      error
	}
	const (
		running int32 = iota
		finished
		abandoned
	)
	var state atomic.Int32
	answered := make(chan answer, 1)
	go func() {
		observed, err := d.controller.Execute(ctx, cmd)
		if !state.CompareAndSwap(running, finished) {
			d.abandoned.Add(-1)
		}
		answered <- answer{observed: observed, err: err}
	}()

	res := Result{Command: cmd}
	var a answer
	select {
	case a = <-answered:
	case <-ctx.Done():
		// counted before the swap so the controller's decrement never runs first
		d.abandoned.Add(1)
		if state.CompareAndSwap(running, abandoned) {
			res.Abandoned = true
			a.err = ctx.Err()
		} else {
			d.abandoned.Add(-1)
			a = <-answered
		}
	}
	res.Observed = a.observed
	res.Err = a.err
	switch {
	case res.Abandoned, errors.Is(a.err, context.DeadlineExceeded):
		res.Outcome = OutcomePending
	case a.err == nil:
		res.Outcome = OutcomeConfirmed
	default:
		res.Outcome = OutcomeFailed
	}
	res.Duration = time.Since(started)

	d.report(context.Background(), res)
}

// Submit queues cmd without blocking.
func (d *Dispatcher) Submit(cmd Command) error {
	if d == nil {
		return ErrQueueFull
	}
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()

	if d.closed.Load() {
		return ErrQueueFull
	}
	select {
	case d.queueFor(cmd.VPSID) <- cmd:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting commands, drains the queue and waits for workers.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.submitMu.Lock()
		d.closed.Store(true)
		d.submitMu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many commands were rejected because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Abandoned returns how many timed-out controller calls are still running.
func (d *Dispatcher) Abandoned() int64 {
	if d == nil {
		return 0
	}
	return d.abandoned.Load()
}
