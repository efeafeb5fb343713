package compile

import "gonum.org/v1/gonum/mat"

// gemmBLAS computes c = a*b through the gonum BLAS backend, for row-major
// a (m x k), b (k x n), c (m x n). The backend works in double precision;
// the single-precision pipeline converts at the boundary.
func gemmBLAS(m, n, k int, a, b, c []float64) {
	am := mat.NewDense(m, k, a)
	bm := mat.NewDense(k, n, b)
	cm := mat.NewDense(m, n, c)
	cm.Mul(am, bm)
}
