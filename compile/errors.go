package compile

import "errors"

// Sentinel errors for compilation. Use errors.Is to test for them.
var (
	// ErrBadTarget indicates an unsupported compilation target.
	ErrBadTarget = errors.New("compile: unsupported target")

	// ErrBadName indicates a module or function name that is not a
	// valid identifier.
	ErrBadName = errors.New("compile: bad name")

	// ErrUnsupported indicates a layer the compiler cannot lower.
	ErrUnsupported = errors.New("compile: unsupported layer")
)
