package compile

import "github.com/klauspost/cpuid/v2"

import "github.com/lanternml/lantern/layer"
import "github.com/lanternml/lantern/parallel"

// axpy32 computes y += a*x. The unrolled width is picked once at startup
// from the CPU feature set.
var axpy32 func(a float32, x, y []float32)
var axpy64 func(a float64, x, y []float64)

func init() {
	if cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) {
		axpy32 = axpy32x8
		axpy64 = axpy64x8
	} else {
		axpy32 = axpy32x4
		axpy64 = axpy64x4
	}
}

func axpy32x8(a float32, x, y []float32) {
	i := 0
	for ; i+8 <= len(x); i += 8 {
		y[i] += a * x[i]
		y[i+1] += a * x[i+1]
		y[i+2] += a * x[i+2]
		y[i+3] += a * x[i+3]
		y[i+4] += a * x[i+4]
		y[i+5] += a * x[i+5]
		y[i+6] += a * x[i+6]
		y[i+7] += a * x[i+7]
	}
	for ; i < len(x); i++ {
		y[i] += a * x[i]
	}
}

func axpy32x4(a float32, x, y []float32) {
	i := 0
	for ; i+4 <= len(x); i += 4 {
		y[i] += a * x[i]
		y[i+1] += a * x[i+1]
		y[i+2] += a * x[i+2]
		y[i+3] += a * x[i+3]
	}
	for ; i < len(x); i++ {
		y[i] += a * x[i]
	}
}

func axpy64x8(a float64, x, y []float64) {
	i := 0
	for ; i+8 <= len(x); i += 8 {
		y[i] += a * x[i]
		y[i+1] += a * x[i+1]
		y[i+2] += a * x[i+2]
		y[i+3] += a * x[i+3]
		y[i+4] += a * x[i+4]
		y[i+5] += a * x[i+5]
		y[i+6] += a * x[i+6]
		y[i+7] += a * x[i+7]
	}
	for ; i < len(x); i++ {
		y[i] += a * x[i]
	}
}

func axpy64x4(a float64, x, y []float64) {
	i := 0
	for ; i+4 <= len(x); i += 4 {
		y[i] += a * x[i]
		y[i+1] += a * x[i+1]
		y[i+2] += a * x[i+2]
		y[i+3] += a * x[i+3]
	}
	for ; i < len(x); i++ {
		y[i] += a * x[i]
	}
}

// gemm32 computes c = a*b for row-major a (m x k), b (k x n), c (m x n).
// c is cleared first. Zero a-elements are skipped; im2col rows from padded
// borders are mostly zero.
func gemm32(m, n, k int, a, b, c []float32, parallelism int) {
	for i := range c {
		c[i] = 0
	}
	row := func(i int) {
		ai := a[i*k : (i+1)*k]
		ci := c[i*n : (i+1)*n]
		for p, av := range ai {
			if av == 0 {
				continue
			}
			axpy32(av, b[p*n:(p+1)*n], ci)
		}
	}
	if parallelism > 1 && m > 1 {
		parallel.ForEach(m, parallelism, row)
	} else {
		for i := 0; i < m; i++ {
			row(i)
		}
	}
}

// gemm64 is gemm32 in double precision.
func gemm64(m, n, k int, a, b, c []float64, parallelism int) {
	for i := range c {
		c[i] = 0
	}
	row := func(i int) {
		ai := a[i*k : (i+1)*k]
		ci := c[i*n : (i+1)*n]
		for p, av := range ai {
			if av == 0 {
				continue
			}
			axpy64(av, b[p*n:(p+1)*n], ci)
		}
	}
	if parallelism > 1 && m > 1 {
		parallel.ForEach(m, parallelism, row)
	} else {
		for i := 0; i < m; i++ {
			row(i)
		}
	}
}

// im2col32 unrolls the receptive field of every output position of a
// convolution into one row of col. Row i is output position (y,x) with
// y = i/outW, x = i-y*outW; columns follow the Darknet kernel order
// [channel][row][col], so a row dot the flattened filter kernel is one
// output value. Out-of-bounds positions stay zero.
func im2col32(in []float32, s layer.Shape, size, stride, padding, outH, outW int, col []float32) {
	k := s.Channels * size * size
	for i := range col {
		col[i] = 0
	}
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			base := (y*outW + x) * k
			for c := 0; c < s.Channels; c++ {
				for ky := 0; ky < size; ky++ {
					iy := y*stride + ky - padding
					if iy < 0 || iy >= s.Height {
						continue
					}
					for kx := 0; kx < size; kx++ {
						ix := x*stride + kx - padding
						if ix < 0 || ix >= s.Width {
							continue
						}
						col[base+(c*size+ky)*size+kx] = in[(iy*s.Width+ix)*s.Channels+c]
					}
				}
			}
		}
	}
}

// im2col64 is im2col32 writing double-precision columns.
func im2col64(in []float32, s layer.Shape, size, stride, padding, outH, outW int, col []float64) {
	k := s.Channels * size * size
	for i := range col {
		col[i] = 0
	}
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			base := (y*outW + x) * k
			for c := 0; c < s.Channels; c++ {
				for ky := 0; ky < size; ky++ {
					iy := y*stride + ky - padding
					if iy < 0 || iy >= s.Height {
						continue
					}
					for kx := 0; kx < size; kx++ {
						ix := x*stride + kx - padding
						if ix < 0 || ix >= s.Width {
							continue
						}
						col[base+(c*size+ky)*size+kx] = float64(in[(iy*s.Width+ix)*s.Channels+c])
					}
				}
			}
		}
	}
}
