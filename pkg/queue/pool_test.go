package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockCast/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestAwaitReturnsValue(t *testing.T) {
	p := NewPool(2, 4, testLogger(t))
	defer p.Stop()

	got, err := Await(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestAwaitPropagatesError(t *testing.T) {
	p := NewPool(1, 2, testLogger(t))
	defer p.Stop()

	want := errors.New("task failed")
	_, err := Await(context.Background(), p, func() (string, error) {
		return "", want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	p := NewPool(1, 1, testLogger(t))
	defer p.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Occupy the only worker so the awaited task cannot start.
		Await(context.Background(), p, func() (struct{}, error) {
			close(started)
			<-release
			return struct{}{}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Await(ctx, p, func() (int, error) { return 1, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	close(release)
	wg.Wait()
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 2, testLogger(t))
	p.Stop()

	err := p.Submit(context.Background(), func() {})
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
	if _, err := Await(context.Background(), p, func() (int, error) { return 0, nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Await err = %v, want ErrPoolClosed", err)
	}
}

func TestStopWaitsForTasks(t *testing.T) {
	p := NewPool(2, 4, testLogger(t))

	var mu sync.Mutex
	done := 0
	for i := 0; i < 8; i++ {
		if err := p.Submit(context.Background(), func() {
			mu.Lock()
			done++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if done != 8 {
		t.Fatalf("done = %d, want 8", done)
	}
}

func TestStopIdempotent(t *testing.T) {
	p := NewPool(1, 1, testLogger(t))
	p.Stop()
	p.Stop()
}

func TestStopWithBlockedSubmit(t *testing.T) {
	p := NewPool(1, 1, testLogger(t))

	started := make(chan struct{})
	release := make(chan struct{})
	// Occupy the only worker, then fill the queue so the next Submit
	// blocks on the channel send.
	if err := p.Submit(context.Background(), func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := p.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	submitted := make(chan error, 1)
	ran := make(chan struct{})
	go func() {
		submitted <- p.Submit(context.Background(), func() { close(ran) })
	}()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)

	close(release)

	if err := <-submitted; err != nil {
		t.Fatalf("blocked Submit returned %v", err)
	}
	<-stopped
	select {
	case <-ran:
	default:
		t.Fatalf("task accepted before Stop never ran")
	}
}
