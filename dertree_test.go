// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"golang.org/x/sync/errgroup"
)

// wantHex asserts that the encoding of n matches the hex string want, both via
// Bytes and via Encode.
func wantHex(t *testing.T, n *Node, want string) {
	t.Helper()
	got, err := n.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v, want nil", err)
	}
	if hex.EncodeToString(got) != want {
		t.Fatalf("Bytes() = %s, want %s", hex.EncodeToString(got), want)
	}
	var buf bytes.Buffer
	if err := n.Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v, want nil", err)
	}
	if hex.EncodeToString(buf.Bytes()) != want {
		t.Errorf("Encode() = %s, want %s", hex.EncodeToString(buf.Bytes()), want)
	}
}

func TestSetOrdering(t *testing.T) {
	// Members must be sorted by their encodings regardless of insertion order.
	tests := map[string][]*Node{
		"Sorted":   {UTF8String("122"), UTF8String("123"), UTF8String("124")},
		"Unsorted": {UTF8String("123"), UTF8String("124"), UTF8String("122")},
		"Reversed": {UTF8String("124"), UTF8String("123"), UTF8String("122")},
	}
	for name, members := range tests {
		t.Run(name, func(t *testing.T) {
			wantHex(t, Set(members...), "310f0c033132320c033132330c03313234")
		})
	}
}

func TestImplicit(t *testing.T) {
	n := Sequence(PrintableString("x"))
	enc, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	w := Wrap(enc)
	u := Set(w.Implicit(1), w.Implicit(0), w.Implicit(2))
	wantHex(t, u, "310fa003130178a103130178a203130178")

	// The donor node must be unchanged by the retagging.
	wantHex(t, w, hex.EncodeToString(enc))
}

func TestStartIndefinite(t *testing.T) {
	var buf bytes.Buffer
	v, err := StartIndefinite(&buf, TagOctetString)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := v.Encode(OctetString(make([]byte, 1))); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}
	want := "24800401000401000401000000"
	if got := hex.EncodeToString(buf.Bytes()); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestStreamIndefinite(t *testing.T) {
	// A 3-byte stream with a 1-byte threshold produces three segments.
	n := OctetStringReaderSize(bytes.NewReader(make([]byte, 3)), 1)
	got, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := "24800401000401000401000000"
	if hex.EncodeToString(got) != want {
		t.Errorf("got %s, want %s", hex.EncodeToString(got), want)
	}
}

func TestStreamPropagation(t *testing.T) {
	// An indefinite-length node forces the indefinite format onto every
	// enclosing node, but siblings keep their definite encodings.
	n := Sequence(Integer(1), OctetStringReaderSize(bytes.NewReader([]byte{0xAA, 0xBB}), 1))
	got, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := "308002010124800401aa0401bb00000000"
	if hex.EncodeToString(got) != want {
		t.Errorf("got %s, want %s", hex.EncodeToString(got), want)
	}
}

func TestStreamFitsThreshold(t *testing.T) {
	// A reader that is exhausted within the threshold degrades to a plain
	// definite-length OCTET STRING.
	data := []byte{1, 2, 3, 4, 5}
	tests := map[string]int{
		"Shorter": 8,
		"Exact":   5,
		"Default": DefaultStreamThreshold,
	}
	for name, threshold := range tests {
		t.Run(name, func(t *testing.T) {
			n := OctetStringReaderSize(bytes.NewReader(data), threshold)
			want, err := OctetString(data).Bytes()
			if err != nil {
				t.Fatal(err)
			}
			got, err := n.Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("got %x, want %x", got, want)
			}
		})
	}
}

func TestStreamThresholdPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive threshold")
		}
	}()
	OctetStringReaderSize(bytes.NewReader(nil), 0)
}

func TestSupplierMemoization(t *testing.T) {
	calls := 0
	n := Sequence(OctetStringFunc(func() ([]byte, error) {
		calls++
		return []byte{1, 2, 3}, nil
	}))
	first, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := n.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
	if !bytes.Equal(first, buf.Bytes()) {
		t.Errorf("encodings differ: %x vs %x", first, buf.Bytes())
	}
}

func TestSupplierError(t *testing.T) {
	wantErr := errors.New("not yet")
	calls := 0
	n := OctetStringFunc(func() ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, wantErr
		}
		return []byte{7}, nil
	})
	if _, err := n.Bytes(); !errors.Is(err, wantErr) {
		t.Fatalf("Bytes() error = %v, want %v", err, wantErr)
	}
	// A failed callback leaves no cached length, so the next encode runs it
	// again.
	wantHex(t, n, "040107")
	if calls != 2 {
		t.Errorf("callback ran %d times, want 2", calls)
	}
}

func TestEncodeTwice(t *testing.T) {
	n := Sequence(Integer(42), Set(UTF8String("b"), UTF8String("a")), OctetString([]byte{9}))
	first, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	second, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("encodings differ: %x vs %x", first, second)
	}
}

func TestOctetStringNode(t *testing.T) {
	// The complete encoding of the inner node becomes the content octets.
	wantHex(t, OctetStringNode(Integer(5)), "0403020105")
}

func TestWrap(t *testing.T) {
	enc, _ := hex.DecodeString("3003130178")
	wantHex(t, Wrap(enc), "3003130178")

	if _, err := Wrap(nil).Bytes(); err == nil {
		t.Error("Wrap(nil) should fail to encode")
	}
}

func TestContextApplication(t *testing.T) {
	tests := map[string]struct {
		node *Node
		want string
	}{
		"Context":     {Context(0, Integer(2)), "a003020102"},
		"Context3":    {Context(3, Null()), "a3020500"},
		"Application": {Application(1, Integer(1)), "6103020101"},
		"Empty":       {Context(0), "a000"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			wantHex(t, tc.node, tc.want)
		})
	}
}

func TestStreamSingleUse(t *testing.T) {
	n := OctetStringReaderSize(bytes.NewReader(make([]byte, 3)), 1)
	if _, err := n.Bytes(); err != nil {
		t.Fatal(err)
	}
	// The stream is exhausted; a second encode only reproduces the prefix.
	second, err := n.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(second); got != "24800401000000" {
		t.Errorf("second encode = %s, want %s", got, "24800401000000")
	}
}

func TestConcurrentTrees(t *testing.T) {
	// Independent trees may be built and encoded concurrently.
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for i := range 100 {
				n := Sequence(Integer(i), Set(UTF8String("123"), UTF8String("122")))
				first, err := n.Bytes()
				if err != nil {
					return err
				}
				second, err := n.Bytes()
				if err != nil {
					return err
				}
				if !bytes.Equal(first, second) {
					return errors.New("encodings differ")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}

func TestEncodeWriteError(t *testing.T) {
	n := Sequence(OctetString(make([]byte, 16)))
	if err := n.Encode(failWriter{}); err == nil {
		t.Error("expected write error")
	}
}

// failWriter fails every write.
type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
