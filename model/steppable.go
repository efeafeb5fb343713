package model

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Run executes the map on a timer: once per step interval it pulls an
// input from source, runs inference, and pushes the result to sink. A map
// must have been built with WithStepInterval to be steppable.
//
// When a step takes longer than the lag threshold, the overrun is reported
// through the map's logger and the next tick fires immediately after.
// Run blocks until ctx is cancelled and then returns ctx.Err().
func (m *Map) Run(ctx context.Context, source func() []float32, sink func([]float32)) error {
	if m.step <= 0 {
		return errors.New("model: map is not steppable (no step interval)")
	}
	if source == nil || sink == nil {
		return errors.New("model: steppable run needs a source and a sink")
	}
	p, err := m.Predictor()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.step)
	defer ticker.Stop()

	m.logger.Info("steppable run starting", "id", m.id, "interval", m.step.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("steppable run stopping", "id", m.id)
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			out, err := p.Predict(source())
			if err != nil {
				return err
			}
			sink(out)
			if elapsed := time.Since(start); m.lag > 0 && elapsed > m.lag {
				m.logger.Warn("inference step lagging",
					"id", m.id, "elapsed", elapsed.String(), "threshold", m.lag.String())
			}
		}
	}
}
