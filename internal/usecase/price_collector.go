package usecase

import (
	"context"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	mid "TrendSentry/internal/middleware"
)

// PriceCollector consumes the exchange tick stream and feeds it through
// the tick pipeline into the in-memory price table.
type PriceCollector struct {
	stream  domrepo.PriceStream
	symbols []string
	metrics domrepo.Metrics
	pipe    *mid.TickPipeline
}

func NewPriceCollector(stream domrepo.PriceStream, symbols []string, metrics domrepo.Metrics, pipe *mid.TickPipeline) *PriceCollector {
	return &PriceCollector{stream: stream, symbols: symbols, metrics: metrics, pipe: pipe}
}

// IsConnected reports whether the exchange stream is up.
func (c *PriceCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *PriceCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

// consume pumps ticks into the pipeline until ctx is cancelled. The stream
// closes both channels when its read loop dies, so any error or closed
// channel means the connection is gone: reconnect and take fresh channels
// from Read, never keep selecting on the dead ones.
func (c *PriceCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
			}
			if tickCh, errCh, ok = c.reopen(ctx); !ok {
				return
			}
		case t, ok := <-tickCh:
			if !ok {
				if tickCh, errCh, ok = c.reopen(ctx); !ok {
					return
				}
				continue
			}
			if t == nil {
				continue
			}
			_ = c.pipe.Process(ctx, t)
		}
	}
}

// reopen re-establishes the stream and returns new read channels. Retries
// until it succeeds or ctx is cancelled; Reconnect paces each attempt with
// the stream's reconnect delay.
func (c *PriceCollector) reopen(ctx context.Context) (<-chan *models.Tick, <-chan error, bool) {
	for {
		if ctx.Err() != nil {
			return nil, nil, false
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		tickCh, errCh := c.stream.Read(ctx)
		return tickCh, errCh, true
	}
}

func (c *PriceCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
