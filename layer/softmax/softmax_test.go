package softmax

import (
	"math"
	"testing"

	"github.com/lanternml/lantern/layer"
)

func TestForwardSumsToOne(t *testing.T) {
	in := layer.Shape{Height: 1, Width: 1, Channels: 10}
	s, err := New(in, 1)
	if err != nil {
		t.Fatal(err)
	}
	input := []float32{-3, -1, 0, 0.5, 1, 1.5, 2, 4, 7, 9}
	out := make([]float32, 10)
	s.Forward(input, out)
	sum := float64(0)
	for _, v := range out {
		if v <= 0 || v >= 1 {
			t.Errorf("probability %v out of (0,1)", v)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("sum = %v, want 1", sum)
	}
}

func TestForwardPreservesOrdering(t *testing.T) {
	s := MustNew(layer.Shape{Height: 1, Width: 1, Channels: 4}, 1)
	input := []float32{0.1, 3, -2, 1}
	out := make([]float32, 4)
	s.Forward(input, out)
	// argmax must survive normalization.
	best := 0
	for i, v := range out {
		if v > out[best] {
			best = i
		}
	}
	if best != 1 {
		t.Errorf("argmax = %d, want 1", best)
	}
	if !(out[1] > out[3] && out[3] > out[0] && out[0] > out[2]) {
		t.Errorf("ordering not preserved: %v", out)
	}
}

func TestForwardUniform(t *testing.T) {
	s := MustNew(layer.Shape{Height: 1, Width: 1, Channels: 5}, 1)
	out := make([]float32, 5)
	s.Forward([]float32{2, 2, 2, 2, 2}, out)
	for _, v := range out {
		if math.Abs(float64(v)-0.2) > 1e-6 {
			t.Errorf("out = %v, want all 0.2", out)
			break
		}
	}
}

func TestForwardLargeInputsStable(t *testing.T) {
	s := MustNew(layer.Shape{Height: 1, Width: 1, Channels: 3}, 1)
	out := make([]float32, 3)
	s.Forward([]float32{1000, 1001, 999}, out)
	sum := float64(0)
	for _, v := range out {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("unstable output %v", out)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("sum = %v, want 1", sum)
	}
}

func TestForwardGroups(t *testing.T) {
	s, err := New(layer.Shape{Height: 1, Width: 1, Channels: 4}, 2)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 4)
	s.Forward([]float32{0, 0, 5, 5}, out)
	for i, v := range out {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("out[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestNewRejectsIndivisibleGroups(t *testing.T) {
	if _, err := New(layer.Shape{Height: 1, Width: 1, Channels: 5}, 2); err == nil {
		t.Error("want error for 5 values in 2 groups")
	}
}

func TestNewDefaultsGroups(t *testing.T) {
	s, err := New(layer.Shape{Height: 1, Width: 1, Channels: 4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Groups() != 1 {
		t.Errorf("Groups() = %d, want 1", s.Groups())
	}
}
