package compile

import "fmt"

// Precision selects the numeric precision the compiled pipeline
// accumulates in.
type Precision int

const (
	// Float32 accumulates in single precision, matching the interpreter.
	Float32 Precision = iota

	// Float64 accumulates in double precision.
	Float64
)

// String returns the Go type name of the precision.
func (p Precision) String() string {
	if p == Float64 {
		return "float64"
	}
	return "float32"
}

// Options are the compiler options.
type Options struct {
	// UseBLAS routes matrix products through the BLAS-backed
	// linear-algebra backend instead of the built-in kernels.
	UseBLAS bool

	// Precision is the accumulation precision of the compiled pipeline.
	Precision Precision

	// Parallelism bounds the number of goroutines a single kernel may
	// use. Values below 2 keep kernels single-threaded.
	Parallelism int
}

// key formats the options for use in the compiled-map cache key.
func (o Options) key() string {
	return fmt.Sprintf("blas=%v,prec=%s,par=%d", o.UseBLAS, o.Precision, o.Parallelism)
}
