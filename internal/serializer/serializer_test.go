package serializer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/hostwire/hostwire/internal/command"
	"github.com/hostwire/hostwire/internal/testutil/testlog"
)

func startSerializer(t *testing.T, queueSize int) *Serializer {
	t.Helper()
	s := New(queueSize)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

func TestExecutionOrderIsSubmissionOrder(t *testing.T) {
	testlog.Start(t)
	s := startSerializer(t, 128)

	const total = 50
	var mu sync.Mutex
	completed := make([]int, 0, total)
	var wg sync.WaitGroup
	wg.Add(total)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < total; i++ {
		i := i
		delay := time.Duration(rng.Intn(3)) * time.Millisecond
		task := Task{
			Command: command.Command{Name: fmt.Sprintf("op.%d", i)},
			Handler: func(params map[string]any) (any, error) {
				time.Sleep(delay)
				mu.Lock()
				completed = append(completed, i)
				mu.Unlock()
				return nil, nil
			},
			Done: func(Result) { wg.Done() },
		}
		if err := s.Submit(context.Background(), task); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(completed) != total {
		t.Fatalf("expected %d completions, got %d", total, len(completed))
	}
	for i, got := range completed {
		if got != i {
			t.Fatalf("completion order broken at %d: %v", i, completed)
		}
	}
}

func TestFIFOHoldsAcrossTransports(t *testing.T) {
	testlog.Start(t)
	s := startSerializer(t, 128)

	const total = 40
	var mu sync.Mutex
	completed := make([]int, 0, total)
	var wg sync.WaitGroup
	wg.Add(total)

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < total; i++ {
		i := i
		delay := time.Duration(rng.Intn(3)) * time.Millisecond
		transport := command.TransportReliable
		if i%2 == 1 {
			transport = command.TransportLossy
		}
		task := Task{
			Command: command.Command{Name: fmt.Sprintf("op.%d", i), Transport: transport},
			Handler: func(params map[string]any) (any, error) {
				time.Sleep(delay)
				mu.Lock()
				completed = append(completed, i)
				mu.Unlock()
				return nil, nil
			},
			Done: func(Result) { wg.Done() },
		}
		var err error
		if transport == command.TransportReliable {
			err = s.Submit(context.Background(), task)
		} else {
			err = s.TrySubmit(task)
		}
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range completed {
		if got != i {
			t.Fatalf("cross-transport order broken at %d: %v", i, completed)
		}
	}
}

func TestHandlerErrorDoesNotStopConsumer(t *testing.T) {
	testlog.Start(t)
	s := startSerializer(t, 8)

	boom := errors.New("boom")
	first := make(chan Result, 1)
	if err := s.Submit(context.Background(), Task{
		Command: command.Command{Name: "failing"},
		Handler: func(params map[string]any) (any, error) { return nil, boom },
		Done:    func(r Result) { first <- r },
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := <-first
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected handler error, got %v", res.Err)
	}

	second := make(chan Result, 1)
	if err := s.Submit(context.Background(), Task{
		Command: command.Command{Name: "healthy"},
		Handler: func(params map[string]any) (any, error) { return "ok", nil },
		Done:    func(r Result) { second <- r },
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res = <-second
	if res.Err != nil || res.Value != "ok" {
		t.Fatalf("consumer did not survive handler error: %+v", res)
	}
}

func TestHandlerPanicBecomesErrorResult(t *testing.T) {
	testlog.Start(t)
	s := startSerializer(t, 8)

	done := make(chan Result, 1)
	if err := s.Submit(context.Background(), Task{
		Command: command.Command{Name: "panicking"},
		Handler: func(params map[string]any) (any, error) { panic("kaboom") },
		Done:    func(r Result) { done <- r },
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res := <-done
	if res.Err == nil {
		t.Fatalf("expected panic converted to error")
	}

	after := make(chan Result, 1)
	if err := s.Submit(context.Background(), Task{
		Command: command.Command{Name: "after"},
		Handler: func(params map[string]any) (any, error) { return nil, nil },
		Done:    func(r Result) { after <- r },
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res := <-after; res.Err != nil {
		t.Fatalf("consumer did not survive panic: %v", res.Err)
	}
}

func TestTrySubmitReportsFullQueue(t *testing.T) {
	testlog.Start(t)
	// No consumer running: the queue fills and stays full.
	s := New(2)

	task := Task{
		Command: command.Command{Name: "noop"},
		Handler: func(params map[string]any) (any, error) { return nil, nil },
	}
	if err := s.TrySubmit(task); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := s.TrySubmit(task); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := s.TrySubmit(task); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if s.Depth() != 2 {
		t.Fatalf("unexpected depth: %d", s.Depth())
	}
}

func TestSubmitAfterStop(t *testing.T) {
	testlog.Start(t)
	s := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(ran)
	}()
	cancel()
	<-ran

	err := s.Submit(context.Background(), Task{
		Command: command.Command{Name: "late"},
		Handler: func(params map[string]any) (any, error) { return nil, nil },
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := s.TrySubmit(Task{Command: command.Command{Name: "late"}}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
