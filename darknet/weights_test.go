package darknet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func writeHeader(buf *bytes.Buffer, major, minor, revision int32, seen uint64) {
	binary.Write(buf, binary.LittleEndian, major)
	binary.Write(buf, binary.LittleEndian, minor)
	binary.Write(buf, binary.LittleEndian, revision)
	if major*10+minor >= 2 {
		binary.Write(buf, binary.LittleEndian, seen)
	} else {
		binary.Write(buf, binary.LittleEndian, uint32(seen))
	}
}

func writeFloats(buf *bytes.Buffer, vals ...float32) {
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, math.Float32bits(v))
	}
}

func TestWeightsReaderHeader(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 0, 2, 0, 640000)
	wr, err := newWeightsReader(&buf, int64(buf.Len()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if wr.Major != 0 || wr.Minor != 2 || wr.Revision != 0 {
		t.Errorf("version = %d.%d.%d", wr.Major, wr.Minor, wr.Revision)
	}
	if wr.Seen != 640000 {
		t.Errorf("Seen = %d, want 640000", wr.Seen)
	}
}

func TestWeightsReaderOldHeader(t *testing.T) {
	// Format 0.1 stores the seen counter as 4 bytes.
	var buf bytes.Buffer
	writeHeader(&buf, 0, 1, 0, 1234)
	writeFloats(&buf, 1.5)
	wr, err := newWeightsReader(&buf, int64(buf.Len()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if wr.Seen != 1234 {
		t.Errorf("Seen = %d, want 1234", wr.Seen)
	}
	vals, err := wr.floats(1)
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 1.5 {
		t.Errorf("float after header = %v, want 1.5", vals[0])
	}
}

func TestWeightsReaderTruncatedHeader(t *testing.T) {
	if _, err := newWeightsReader(bytes.NewReader([]byte{1, 2, 3}), 3, nil); !errors.Is(err, ErrBadWeights) {
		t.Errorf("err = %v, want ErrBadWeights", err)
	}
}

func TestWeightsReaderTruncatedTensor(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 0, 2, 0, 0)
	writeFloats(&buf, 1, 2)
	wr, err := newWeightsReader(&buf, int64(buf.Len()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wr.floats(3); !errors.Is(err, ErrBadWeights) {
		t.Errorf("err = %v, want ErrBadWeights", err)
	}
}

func TestWeightsReaderDrained(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 0, 2, 0, 0)
	writeFloats(&buf, 1, 2, 3)
	wr, err := newWeightsReader(&buf, int64(buf.Len()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wr.floats(2); err != nil {
		t.Fatal(err)
	}
	if err := wr.drained(); !errors.Is(err, ErrBadWeights) {
		t.Errorf("drained with leftovers: err = %v, want ErrBadWeights", err)
	}
}

func TestWeightsReaderProgress(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 0, 2, 0, 0)
	writeFloats(&buf, 1, 2, 3, 4)
	total := int64(buf.Len())
	var last int64
	wr, err := newWeightsReader(&buf, total, func(read, tot int64) {
		if tot != total {
			t.Errorf("total = %d, want %d", tot, total)
		}
		last = read
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wr.floats(4); err != nil {
		t.Fatal(err)
	}
	if last != total {
		t.Errorf("final read = %d, want %d", last, total)
	}
}
