package engine

import (
	"context"
	"fmt"
	"time"

	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/pkg/logger"
)

// WorkerKind distinguishes the two worker roles in the pool.
type WorkerKind string

const (
	WorkerAnalyzer WorkerKind = "analyzer"
	WorkerMonitor  WorkerKind = "monitor"
)

// Task is one worker's unit of work, invoked once per tick. Emitted
// payloads travel to the coordinator wrapped in the worker's envelope.
type Task interface {
	RunCycle(ctx context.Context, emit func(Payload))
}

// Worker drives a Task on a fixed tick interval. Cancellation is
// cooperative: control commands and context cancellation are honoured at
// the top of the loop, never mid-cycle.
type Worker struct {
	id         string
	kind       WorkerKind
	symbols    []string
	interval   time.Duration
	startDelay time.Duration
	task       Task
	out        chan<- Message
	ctrl       chan Command
	shutdown   chan Command
	log        *logger.Logger
	metrics    domrepo.Metrics
}

func NewWorker(id string, kind WorkerKind, symbols []string, interval, startDelay time.Duration, task Task, out chan<- Message, log *logger.Logger, metrics domrepo.Metrics) *Worker {
	return &Worker{
		id:         id,
		kind:       kind,
		symbols:    symbols,
		interval:   interval,
		startDelay: startDelay,
		task:       task,
		out:        out,
		ctrl:       make(chan Command, 4),
		shutdown:   make(chan Command, 1),
		log:        log,
		metrics:    metrics,
	}
}

func (w *Worker) ID() string       { return w.id }
func (w *Worker) Kind() WorkerKind { return w.kind }

// Control delivers a coordinator command. Non-blocking: a worker stuck in
// a long cycle picks the command up at its next safe point. Shutdown rides
// a dedicated one-slot channel so a backlog of queued commands can never
// drop the termination request.
func (w *Worker) Control(cmd Command) {
	if cmd.Kind == CmdShutdown {
		select {
		case w.shutdown <- cmd:
		default:
			// one already pending
		}
		return
	}
	select {
	case w.ctrl <- cmd:
	default:
	}
}

// Run executes the tick loop until shutdown. A recovered panic is returned
// as an error so the pool manager can treat it as an abnormal exit; a nil
// return is a clean termination.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panic: %v", w.id, r)
		}
	}()

	if w.startDelay > 0 {
		select {
		case <-time.After(w.startDelay):
		case <-w.shutdown:
			return nil
		case <-ctx.Done():
			return nil
		}
	}

	w.send(ctx, WorkerReadyPayload{Symbols: w.symbols})

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	paused := false
	w.tick(ctx, paused)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shutdown:
			return nil
		case cmd := <-w.ctrl:
			switch cmd.Kind {
			case CmdShutdown:
				return nil
			case CmdPause:
				paused = true
			case CmdResume:
				paused = false
			case CmdHealthCheck:
				w.send(ctx, HeartbeatPayload{})
			}
		case <-ticker.C:
			w.tick(ctx, paused)
		}
	}
}

func (w *Worker) tick(ctx context.Context, paused bool) {
	if paused {
		return
	}
	start := time.Now()
	w.task.RunCycle(ctx, func(p Payload) { w.send(ctx, p) })
	if w.metrics != nil {
		w.metrics.RecordCycleDuration(w.id, time.Since(start).Seconds())
	}
	// Every message doubles as a heartbeat; a cycle that emitted nothing
	// still needs to register liveness.
	w.send(ctx, HeartbeatPayload{})
}

func (w *Worker) send(ctx context.Context, p Payload) {
	select {
	case w.out <- NewMessage(w.id, p):
	case <-ctx.Done():
	}
}
