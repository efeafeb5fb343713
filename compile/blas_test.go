package compile

import (
	"math"
	"testing"
)

func TestGemmBLASMatchesGemm64(t *testing.T) {
	m, n, k := 5, 7, 6
	a := make([]float64, m*k)
	b := make([]float64, k*n)
	for i := range a {
		a[i] = float64(i%11)*0.5 - 2
	}
	for i := range b {
		b[i] = float64(i%13)*0.25 - 1
	}
	blas := make([]float64, m*n)
	plain := make([]float64, m*n)
	gemmBLAS(m, n, k, a, b, blas)
	gemm64(m, n, k, a, b, plain, 0)
	for i := range plain {
		if math.Abs(blas[i]-plain[i]) > 1e-9 {
			t.Errorf("index %d: blas %v, plain %v", i, blas[i], plain[i])
		}
	}
}
