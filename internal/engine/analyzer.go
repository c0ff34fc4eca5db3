package engine

import (
	"context"
	"errors"
	"fmt"

	"TrendSentry/internal/domain/models"
	"TrendSentry/pkg/logger"
)

// Analyzer owns a fixed disjoint subset of the instrument universe and
// runs the evaluation pipeline over it once per tick.
type Analyzer struct {
	symbols  []string
	pipeline *Pipeline
	log      *logger.Logger
}

func NewAnalyzer(symbols []string, pipeline *Pipeline, log *logger.Logger) *Analyzer {
	return &Analyzer{symbols: symbols, pipeline: pipeline, log: log}
}

// RunCycle evaluates every assigned symbol. A failure for one symbol is
// caught, reported, and treated as "no opportunity"; it never aborts the
// rest of the cycle.
func (a *Analyzer) RunCycle(ctx context.Context, emit func(Payload)) {
	for _, symbol := range a.symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cand, err := a.evaluate(ctx, symbol)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				a.log.Debug("symbol skipped", logger.String("symbol", symbol), logger.Error(err))
				continue
			}
			a.log.Warn("evaluation failed", logger.String("symbol", symbol), logger.Error(err))
			emit(WorkerErrorPayload{Symbol: symbol, Err: err.Error()})
			continue
		}
		if cand != nil {
			emit(NewSignalPayload{Candidate: cand})
		}
	}
}

// evaluate wraps one pipeline pass with panic isolation so a bad symbol
// cannot take down its siblings.
func (a *Analyzer) evaluate(ctx context.Context, symbol string) (cand *models.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand = nil
			err = fmt.Errorf("evaluate %s panic: %v", symbol, r)
		}
	}()
	return a.pipeline.Evaluate(ctx, symbol)
}
