// Package serializer owns the single host-touching execution context.
//
// Ownership boundary:
// - the bounded task queue fed by every listener
// - the one consumer goroutine permitted to invoke handlers
// - per-task failure containment
//
// Ordering is strict global FIFO across all producers combined. No
// relative ordering exists between the two transports beyond their
// enqueue order here.
package serializer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/command"
)

var (
	ErrQueueFull = errors.New("serializer: queue full")
	ErrStopped   = errors.New("serializer: stopped")
)

// Result is the outcome of one executed command.
type Result struct {
	Value any
	Err   error
}

// Task pairs one command with its completion callback. Done is invoked
// on the consumer goroutine after the handler returns; a nil Done is the
// no-op responder used by the lossy path.
type Task struct {
	Command command.Command
	Handler command.Handler
	Done    func(Result)
}

const DefaultQueueSize = 256

// Serializer hops commands from N producer goroutines onto the one
// consumer goroutine allowed to mutate host state. The queue is bounded:
// reliable producers block in Submit when it is full, the lossy listener
// uses TrySubmit and drops instead.
type Serializer struct {
	tasks   chan Task
	stopped chan struct{}
}

func New(queueSize int) *Serializer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Serializer{
		tasks:   make(chan Task, queueSize),
		stopped: make(chan struct{}),
	}
}

// Submit enqueues one task, blocking while the queue is full. It returns
// once the task is queued, not once it has run; callers that need the
// result wait on their own Done callback.
func (s *Serializer) Submit(ctx context.Context, t Task) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.tasks <- t:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues one task without blocking. A full queue is reported
// as ErrQueueFull; the caller decides whether dropping is acceptable.
func (s *Serializer) TrySubmit(t Task) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth reports the number of queued, not-yet-executed tasks.
func (s *Serializer) Depth() int {
	return len(s.tasks)
}

// Run consumes and executes tasks one at a time until ctx is cancelled.
// Exactly one Run may be active; it is the only goroutine that invokes
// handlers. Tasks still queued at cancellation are discarded.
func (s *Serializer) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case t := <-s.tasks:
			s.execute(t)
		case <-ctx.Done():
			return
		}
	}
}

// execute runs one handler, containing both error returns and panics so
// a failing command can never take the consumer loop down with it.
func (s *Serializer) execute(t Task) {
	res := s.invoke(t)
	if res.Err != nil {
		log.Warn().
			Str("command", t.Command.Name).
			Str("transport", t.Command.Transport.String()).
			Err(res.Err).
			Msg("command failed")
	}
	if t.Done != nil {
		t.Done(res)
	}
}

func (s *Serializer) invoke(t Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("serializer: handler panic: %v", r)}
		}
	}()
	value, err := t.Handler(t.Command.Params)
	return Result{Value: value, Err: err}
}
