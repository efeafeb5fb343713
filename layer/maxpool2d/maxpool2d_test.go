package maxpool2d

import (
	"testing"

	"github.com/lanternml/lantern/layer"
)

func TestForwardStride2(t *testing.T) {
	in := layer.Shape{Height: 4, Width: 4, Channels: 1}
	m, err := New(in, 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.OutShape(); got != (layer.Shape{Height: 2, Width: 2, Channels: 1}) {
		t.Fatalf("OutShape() = %v", got)
	}
	input := []float32{
		1, 3, 2, 4,
		5, 6, 7, 8,
		9, 2, 1, 0,
		3, 4, 5, 6,
	}
	out := make([]float32, 4)
	m.Forward(input, out)
	want := []float32{6, 8, 9, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestForwardStride1(t *testing.T) {
	in := layer.Shape{Height: 3, Width: 3, Channels: 1}
	m := MustNew(in, 2, 1, 1)
	if got := m.OutShape(); got != (layer.Shape{Height: 3, Width: 3, Channels: 1}) {
		t.Fatalf("OutShape() = %v", got)
	}
	input := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	out := make([]float32, 9)
	m.Forward(input, out)
	want := []float32{5, 6, 6, 8, 9, 9, 8, 9, 9}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestForwardPerChannel(t *testing.T) {
	in := layer.Shape{Height: 2, Width: 2, Channels: 2}
	m := MustNew(in, 2, 2, 1)
	input := []float32{1, 10, 2, 20, 3, 30, 4, 40}
	out := make([]float32, 2)
	m.Forward(input, out)
	if out[0] != 4 || out[1] != 40 {
		t.Errorf("out = %v, want [4 40]", out)
	}
}

func TestNewRejectsBadGeometry(t *testing.T) {
	in := layer.Shape{Height: 2, Width: 2, Channels: 1}
	if _, err := New(in, 0, 1, 0); err == nil {
		t.Error("want error for zero size")
	}
	if _, err := New(in, 4, 1, 0); err == nil {
		t.Error("want error for oversized window")
	}
}
