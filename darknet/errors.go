package darknet

import "errors"

// Sentinel errors for the import pipeline. Use errors.Is to test for them;
// returned errors carry file and layer context around these.
var (
	// ErrBadConfig indicates the layer-configuration file is malformed.
	ErrBadConfig = errors.New("darknet: bad config")

	// ErrBadWeights indicates the weights file is malformed, truncated,
	// or does not match the config.
	ErrBadWeights = errors.New("darknet: bad weights")

	// ErrUnsupportedLayer indicates a config section naming a layer type
	// the importer does not handle.
	ErrUnsupportedLayer = errors.New("darknet: unsupported layer")

	// ErrShapeMismatch indicates a layer whose geometry does not fit the
	// shape produced by the preceding layer.
	ErrShapeMismatch = errors.New("darknet: shape mismatch")
)
