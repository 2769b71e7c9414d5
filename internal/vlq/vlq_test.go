package vlq

import (
	"bytes"
	"slices"
	"strconv"
	"testing"
)

// writeTestCase represents a single writing test case for type T.
type writeTestcase[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64] struct {
	value T
	want  []byte
}

// testWrite asserts that writing tc.value as a VLQ produces the bytes in tc.want.
func testWrite[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](t *testing.T, tc writeTestcase[T]) {
	t.Helper()

	l := Size(tc.value)
	if l != len(tc.want) {
		t.Errorf("Size(%d) = %d, want %d", tc.value, l, len(tc.want))
	}
	var buf bytes.Buffer
	buf.Grow(l)
	n, err := Write(&buf, tc.value)
	if err != nil {
		t.Fatalf("Write(%d) error = %v, want nil", tc.value, err)
	}
	if n != len(tc.want) {
		t.Errorf("Write(%d) n = %d, want %d", tc.value, n, len(tc.want))
	}
	if got := buf.Bytes(); !slices.Equal(got, tc.want) {
		t.Errorf("Write(%d) = %# x, want %# x", tc.value, got, tc.want)
	}
}

func Test_Write(t *testing.T) {
	tests := []writeTestcase[uint]{
		{0, []byte{0x00}},
		{25, []byte{25}},
		{641, []byte{0x85, 0x01}},
	}
	for _, tc := range tests {
		t.Run(strconv.FormatUint(uint64(tc.value), 10), func(t *testing.T) {
			testWrite(t, tc)
		})
	}
}

func TestWrite8(t *testing.T) {
	tests := []writeTestcase[uint8]{
		{0, []byte{0x00}},
		{200, []byte{0x81, 0x48}},
	}
	for _, tc := range tests {
		t.Run(strconv.FormatUint(uint64(tc.value), 10), func(t *testing.T) {
			testWrite(t, tc)
		})
	}
}

func BenchmarkSize(b *testing.B) {
	for b.Loop() {
		Size(uint8(200))
	}
}
