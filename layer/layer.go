// Package layer defines the shape, activation and layer contract shared by all network layers.
package layer

import "fmt"

// Shape describes a height x width x channels activation volume.
// Activations are flattened row-major in HWC order: index (y,x,c) maps to
// (y*Width+x)*Channels+c.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Size returns the number of elements in the volume.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

// String formats the shape as HxWxC.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Layer is a single forward-inference stage of a network.
type Layer interface {

	// Name reports the layer type name as it appears in Darknet configs.
	Name() string

	// InShape reports the shape the layer consumes.
	InShape() Shape

	// OutShape reports the shape the layer produces.
	OutShape() Shape

	// Params reports the number of learned parameters held by the layer.
	Params() int

	// Forward computes the layer output. The in slice must hold
	// InShape().Size() values and out must hold OutShape().Size().
	Forward(in, out []float32)
}
