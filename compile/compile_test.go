package compile

import (
	"errors"
	"math"
	"testing"

	"github.com/lanternml/lantern/layer"
	"github.com/lanternml/lantern/layer/avgpool2d"
	"github.com/lanternml/lantern/layer/conv2d"
	"github.com/lanternml/lantern/layer/full"
	"github.com/lanternml/lantern/layer/maxpool2d"
	"github.com/lanternml/lantern/layer/softmax"
	"github.com/lanternml/lantern/model"
	"github.com/lanternml/lantern/net/predictor"
)

// tolerance matches the regression criterion: compiled and interpreted
// outputs agree to five decimal places.
const tolerance = 1e-5

func testNet(t *testing.T) *predictor.Predictor {
	t.Helper()
	in := layer.Shape{Height: 6, Width: 6, Channels: 1}
	conv1 := conv2d.MustNew(in, 2, 3, 1, 1, layer.Leaky)
	k1 := make([]float32, 2*1*3*3)
	for i := range k1 {
		k1[i] = float32(i%5)*0.25 - 0.5
	}
	if err := conv1.SetWeights(k1, []float32{0.1, -0.2}); err != nil {
		t.Fatal(err)
	}
	mp := maxpool2d.MustNew(conv1.OutShape(), 2, 2, 1)
	conv2 := conv2d.MustNew(mp.OutShape(), 3, 3, 1, 1, layer.Relu)
	k2 := make([]float32, 3*2*3*3)
	for i := range k2 {
		k2[i] = float32(i%7)*0.125 - 0.375
	}
	if err := conv2.SetWeights(k2, []float32{0, 0.05, -0.05}); err != nil {
		t.Fatal(err)
	}
	ap := avgpool2d.MustNew(conv2.OutShape())
	fc := full.MustNew(ap.OutShape(), 4, layer.Linear)
	w := make([]float32, 4*3)
	for i := range w {
		w[i] = float32(i%3)*0.5 - 0.5
	}
	if err := fc.SetWeights(w, []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatal(err)
	}
	sm := softmax.MustNew(fc.OutShape(), 1)
	p, err := predictor.New(conv1, mp, conv2, ap, fc, sm)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func testMap(t *testing.T) *model.Map {
	t.Helper()
	m, err := model.FromPredictor(testNet(t), model.WithFunctionPrefix("Tiny"))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testInputs(n int) [][]float32 {
	ramp := make([]float32, n)
	flipped := make([]float32, n)
	for i := range ramp {
		ramp[i] = float32(i) / float32(n)
		flipped[i] = float32(n-1-i) / float32(n)
	}
	return [][]float32{ramp, flipped}
}

func TestCompiledMatchesInterpreted(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"default", Options{}},
		{"blas", Options{UseBLAS: true}},
		{"float64", Options{Precision: Float64}},
		{"blas float64", Options{UseBLAS: true, Precision: Float64}},
		{"parallel", Options{Parallelism: 4}},
	}
	p := testNet(t)
	m := testMap(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(m, "host", "model", "", tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			for _, input := range testInputs(36) {
				want, err := p.Predict(input)
				if err != nil {
					t.Fatal(err)
				}
				got, err := c.Compute(input)
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != len(want) {
					t.Fatalf("got %d outputs, want %d", len(got), len(want))
				}
				for i := range want {
					if math.Abs(float64(got[i]-want[i])) > tolerance {
						t.Errorf("output %d: compiled %v, interpreted %v", i, got[i], want[i])
					}
				}
			}
		})
	}
}

func TestCompileDefaultsFunctionName(t *testing.T) {
	c, err := Compile(testMap(t), "host", "", "", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Module() != "model" {
		t.Errorf("Module() = %q, want model", c.Module())
	}
	if c.Function() != "TinyPredict" {
		t.Errorf("Function() = %q, want TinyPredict", c.Function())
	}
}

func TestCompileCaches(t *testing.T) {
	PurgeCache()
	m := testMap(t)
	a, err := Compile(m, "host", "model", "Predict", Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compile(m, "host", "model", "Predict", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second compile did not hit the cache")
	}
	c, err := Compile(m, "host", "model", "Predict", Options{UseBLAS: true})
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("different options share a cache entry")
	}
	PurgeCache()
	d, err := Compile(m, "host", "model", "Predict", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a == d {
		t.Error("purge did not evict the cached map")
	}
}

func TestCompileRejectsBadTarget(t *testing.T) {
	if _, err := Compile(testMap(t), "cortex-m4", "model", "Predict", Options{}); !errors.Is(err, ErrBadTarget) {
		t.Errorf("err = %v, want ErrBadTarget", err)
	}
}

func TestCompileRejectsBadNames(t *testing.T) {
	m := testMap(t)
	for _, name := range []string{"9abc", "has space", "has-dash", "ünicode"} {
		if _, err := Compile(m, "host", "model", name, Options{}); !errors.Is(err, ErrBadName) {
			t.Errorf("function %q: err = %v, want ErrBadName", name, err)
		}
		if _, err := Compile(m, "host", name, "Predict", Options{}); !errors.Is(err, ErrBadName) {
			t.Errorf("module %q: err = %v, want ErrBadName", name, err)
		}
	}
}

func TestComputeInputLength(t *testing.T) {
	c, err := Compile(testMap(t), "host", "model", "Predict", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compute(make([]float32, 7)); err == nil {
		t.Error("want error for wrong input length")
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Predict", true},
		{"model_v2", true},
		{"_hidden", true},
		{"", false},
		{"2fast", false},
		{"a b", false},
		{"a.b", false},
	}
	for _, tt := range tests {
		if got := validName(tt.in); got != tt.want {
			t.Errorf("validName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
