package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"TrendSentry/internal/domain/models"
	mid "TrendSentry/internal/middleware"
)

// flakyStream scripts one connection drop: the first Read fails
// immediately, emitting an error and closing both channels the way the
// exchange stream does when its read loop dies. The second Read emits a
// tick and stays open.
type flakyStream struct {
	mu         sync.Mutex
	readCalls  int
	reconnects int
}

func (s *flakyStream) Connect(context.Context) error             { return nil }
func (s *flakyStream) Subscribe(context.Context, []string) error { return nil }
func (s *flakyStream) Close() error                              { return nil }
func (s *flakyStream) IsConnected() bool                         { return true }

func (s *flakyStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *flakyStream) Read(context.Context) (<-chan *models.Tick, <-chan error) {
	s.mu.Lock()
	s.readCalls++
	call := s.readCalls
	s.mu.Unlock()

	ticks := make(chan *models.Tick, 4)
	errs := make(chan error, 1)
	if call == 1 {
		errs <- fmt.Errorf("connection reset")
		close(ticks)
		close(errs)
	} else {
		ticks <- &models.Tick{Symbol: "ETHUSDT", Price: 200, Volume: 1, Timestamp: 2}
	}
	return ticks, errs
}

func (s *flakyStream) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCalls, s.reconnects
}

type tickSink struct {
	mu    sync.Mutex
	ticks []*models.Tick
}

func (p *tickSink) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *tickSink) symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.ticks))
	for i, t := range p.ticks {
		out[i] = t.Symbol
	}
	return out
}

func TestCollectorResumesAfterReconnect(t *testing.T) {
	stream := &flakyStream{}
	sink := &tickSink{}
	pipe := mid.NewTickPipeline(sink, nopMetrics{}, mid.WithMaxRPS(1000))
	c := NewPriceCollector(stream, []string{"ETHUSDT"}, nopMetrics{}, pipe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.symbols()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := sink.symbols()
	if len(got) != 1 || got[0] != "ETHUSDT" {
		t.Fatalf("expected the post-reconnect tick consumed, got %v", got)
	}
	reads, reconnects := stream.counts()
	if reconnects != 1 {
		t.Fatalf("expected one reconnect, got %d", reconnects)
	}
	if reads != 2 {
		t.Fatalf("expected Read re-invoked after reconnect, got %d calls", reads)
	}
}
