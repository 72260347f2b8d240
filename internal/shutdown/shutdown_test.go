package shutdown

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	logrtesting "github.com/go-logr/logr/testing"
)

func TestWait_ParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := New(parent, logrtesting.NewTestLogger(t))

	cancel()
	if err := c.Wait(); err != nil {
		t.Fatalf("expected nil for signal-driven shutdown, got %v", err)
	}
}

func TestFail_FirstCauseWins(t *testing.T) {
	c := New(context.Background(), logrtesting.NewTestLogger(t))

	first := errors.New("first")
	c.Fail(first)
	c.Fail(errors.New("second"))

	if err := c.Wait(); !errors.Is(err, first) {
		t.Fatalf("expected first cause, got %v", err)
	}
	if c.Context().Err() == nil {
		t.Error("expected context to be cancelled")
	}
}

func TestFail_NilError(t *testing.T) {
	c := New(context.Background(), logrtesting.NewTestLogger(t))
	c.Fail(nil)

	if err := c.Wait(); err == nil {
		t.Fatal("expected a non-nil cause for Fail(nil)")
	}
}

func TestFail_FromManyTasks(t *testing.T) {
	c := New(context.Background(), logrtesting.NewTestLogger(t))
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		go c.Fail(boom)
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Fail")
	}
}

func TestFail_TimeoutIsNotASignal(t *testing.T) {
	c := New(context.Background(), logrtesting.NewTestLogger(t))

	timeout := fmt.Errorf("fetching public address: %w", context.DeadlineExceeded)
	c.Fail(timeout)

	err := c.Wait()
	if err == nil {
		t.Fatal("expected the timeout to be reported as a failure, got nil")
	}
	if err != timeout {
		t.Fatalf("expected %v, got %v", timeout, err)
	}
}

func TestFail_AfterParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := New(parent, logrtesting.NewTestLogger(t))

	cancel()
	c.Fail(errors.New("late"))

	if err := c.Wait(); err != nil {
		t.Fatalf("expected signal shutdown to win, got %v", err)
	}
}
