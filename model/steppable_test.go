package model

import (
	"context"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	m, err := FromPredictor(testPredictor(t), WithStepInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	input := testInput(16)
	results := make(chan []float32, 1)
	go func() {
		err := m.Run(ctx,
			func() []float32 { return input },
			func(out []float32) {
				select {
				case results <- out:
				default:
				}
			})
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
		close(results)
	}()

	select {
	case out := <-results:
		if len(out) != 3 {
			t.Errorf("sink got %d values, want 3", len(out))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no inference result within 5s")
	}
	cancel()
	for range results {
	}
}

func TestRunNotSteppable(t *testing.T) {
	m, err := FromPredictor(testPredictor(t))
	if err != nil {
		t.Fatal(err)
	}
	err = m.Run(context.Background(), func() []float32 { return nil }, func([]float32) {})
	if err == nil {
		t.Fatal("want error for map without step interval")
	}
}

func TestRunNeedsSourceAndSink(t *testing.T) {
	m, err := FromPredictor(testPredictor(t), WithStepInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(context.Background(), nil, func([]float32) {}); err == nil {
		t.Error("want error for nil source")
	}
	if err := m.Run(context.Background(), func() []float32 { return nil }, nil); err == nil {
		t.Error("want error for nil sink")
	}
}
