package compile

import (
	"math"
	"testing"

	"github.com/lanternml/lantern/layer"
)

func TestAxpyVariantsAgree(t *testing.T) {
	x := make([]float32, 11)
	for i := range x {
		x[i] = float32(i) * 0.5
	}
	y8 := make([]float32, 11)
	y4 := make([]float32, 11)
	axpy32x8(2, x, y8)
	axpy32x4(2, x, y4)
	for i := range y8 {
		if y8[i] != y4[i] {
			t.Errorf("index %d: x8=%v x4=%v", i, y8[i], y4[i])
		}
		if y8[i] != float32(i) {
			t.Errorf("index %d: got %v, want %v", i, y8[i], float32(i))
		}
	}
}

func TestGemm32(t *testing.T) {
	// a is 2x3, b is 3x2.
	a := []float32{1, 2, 3, 4, 0, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	c := make([]float32, 4)
	gemm32(2, 2, 3, a, b, c, 0)
	want := []float32{58, 64, 94, 104}
	for i := range want {
		if c[i] != want[i] {
			t.Errorf("c[%d] = %v, want %v", i, c[i], want[i])
		}
	}
}

func TestGemm32Parallel(t *testing.T) {
	m, n, k := 16, 8, 12
	a := make([]float32, m*k)
	b := make([]float32, k*n)
	for i := range a {
		a[i] = float32(i%9) * 0.5
	}
	for i := range b {
		b[i] = float32(i%5) - 2
	}
	serial := make([]float32, m*n)
	concurrent := make([]float32, m*n)
	gemm32(m, n, k, a, b, serial, 1)
	gemm32(m, n, k, a, b, concurrent, 4)
	for i := range serial {
		if serial[i] != concurrent[i] {
			t.Fatalf("index %d: serial %v, parallel %v", i, serial[i], concurrent[i])
		}
	}
}

func TestGemm64MatchesGemm32(t *testing.T) {
	m, n, k := 3, 4, 5
	a32 := make([]float32, m*k)
	b32 := make([]float32, k*n)
	a64 := make([]float64, m*k)
	b64 := make([]float64, k*n)
	for i := range a32 {
		a32[i] = float32(i)*0.25 - 1
		a64[i] = float64(a32[i])
	}
	for i := range b32 {
		b32[i] = float32(i%3) - 1
		b64[i] = float64(b32[i])
	}
	c32 := make([]float32, m*n)
	c64 := make([]float64, m*n)
	gemm32(m, n, k, a32, b32, c32, 0)
	gemm64(m, n, k, a64, b64, c64, 0)
	for i := range c32 {
		if math.Abs(float64(c32[i])-c64[i]) > 1e-5 {
			t.Errorf("index %d: float32 %v, float64 %v", i, c32[i], c64[i])
		}
	}
}

func TestIm2col32(t *testing.T) {
	// 3x3 single-channel input, 2x2 kernel, stride 1, no padding.
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	s := layer.Shape{Height: 3, Width: 3, Channels: 1}
	col := make([]float32, 4*4)
	im2col32(in, s, 2, 1, 0, 2, 2, col)
	want := []float32{
		1, 2, 4, 5,
		2, 3, 5, 6,
		4, 5, 7, 8,
		5, 6, 8, 9,
	}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("col[%d] = %v, want %v", i, col[i], want[i])
		}
	}
}

func TestIm2col32Padding(t *testing.T) {
	// 2x2 input, 3x3 kernel, padding 1: the corner rows keep zeros where
	// the window hangs over the border.
	in := []float32{1, 2, 3, 4}
	s := layer.Shape{Height: 2, Width: 2, Channels: 1}
	col := make([]float32, 4*9)
	im2col32(in, s, 3, 1, 1, 2, 2, col)
	// Output position (0,0): window rows (-1..1)x(-1..1).
	want := []float32{
		0, 0, 0,
		0, 1, 2,
		0, 3, 4,
	}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("col[%d] = %v, want %v", i, col[i], want[i])
		}
	}
}
