package engine

import (
	"context"
	"testing"
	"time"
)

func TestWorkerShutdownSurvivesCommandBacklog(t *testing.T) {
	out := make(chan Message, 16)
	w := NewWorker("analyzer-1", WorkerAnalyzer, []string{"BTCUSDT"}, time.Hour, 0,
		idleTask(), out, testLogger(t), fakeMetrics{})

	// Saturate the control queue the way repeated health pings against a
	// busy worker would, then request termination.
	for i := 0; i < 8; i++ {
		w.Control(Command{Kind: CmdHealthCheck, At: time.Now()})
	}
	w.Control(Command{Kind: CmdShutdown, At: time.Now()})

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("shutdown lost behind queued commands")
	}
}

func TestWorkerShutdownDuringStartDelay(t *testing.T) {
	out := make(chan Message, 16)
	w := NewWorker("analyzer-1", WorkerAnalyzer, nil, time.Hour, time.Hour,
		idleTask(), out, testLogger(t), fakeMetrics{})

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.Control(Command{Kind: CmdShutdown, At: time.Now()})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("worker stuck in its start delay")
	}
}
