package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"TrendSentry/internal/domain/models"
)

type recordingProc struct {
	ticks []*models.Tick
	err   error
}

func (p *recordingProc) Process(_ context.Context, t *models.Tick) error {
	if p.err != nil {
		return p.err
	}
	p.ticks = append(p.ticks, t)
	return nil
}

type noMetrics struct{}

func (noMetrics) RecordSignalCreated(string, string)  {}
func (noMetrics) RecordTransition(string)             {}
func (noMetrics) RecordWorkerRestart(string)          {}
func (noMetrics) RecordError(string)                  {}
func (noMetrics) RecordLastPrice(string, float64)     {}
func (noMetrics) RecordCycleDuration(string, float64) {}

func validTick(symbol string) *models.Tick {
	return &models.Tick{Symbol: symbol, Price: 100.5, Volume: 12, Timestamp: time.Now().UnixMilli()}
}

func TestPipelineForwardsValidTick(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, noMetrics{})

	if err := p.Process(context.Background(), validTick("BTCUSDT")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(proc.ticks) != 1 || proc.ticks[0].Symbol != "BTCUSDT" {
		t.Fatalf("tick not forwarded: %+v", proc.ticks)
	}
}

func TestPipelineRejectsMalformedTicks(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, noMetrics{})

	cases := []*models.Tick{
		nil,
		{Price: 100, Timestamp: 1},
		{Symbol: "BTCUSDT", Price: 100},
		{Symbol: "BTCUSDT", Price: 0, Timestamp: 1},
		{Symbol: "BTCUSDT", Price: -1, Timestamp: 1},
		{Symbol: "BTCUSDT", Price: 100, Volume: -5, Timestamp: 1},
	}
	for i, tick := range cases {
		if err := p.Process(context.Background(), tick); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, tick)
		}
	}
	if len(proc.ticks) != 0 {
		t.Fatalf("malformed ticks must not reach downstream")
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickPipeline(proc, noMetrics{}, WithMaxRPS(1))

	// Two back-to-back ticks on one symbol: second dropped, no error.
	if err := p.Process(context.Background(), validTick("BTCUSDT")); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := p.Process(context.Background(), validTick("BTCUSDT")); err != nil {
		t.Fatalf("throttled tick must drop silently: %v", err)
	}
	// A different symbol has its own budget.
	if err := p.Process(context.Background(), validTick("ETHUSDT")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if len(proc.ticks) != 2 {
		t.Fatalf("expected 2 forwarded ticks, got %d", len(proc.ticks))
	}
}

func TestPipelineWrapsDownstreamError(t *testing.T) {
	proc := &recordingProc{err: fmt.Errorf("table closed")}
	p := NewTickPipeline(proc, noMetrics{})

	if err := p.Process(context.Background(), validTick("BTCUSDT")); err == nil {
		t.Fatalf("expected downstream error surfaced")
	}
}
