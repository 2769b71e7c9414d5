// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"bytes"
	"strconv"
	"testing"
)

func TestLengthOctets(t *testing.T) {
	tests := map[int]int{
		0:         1,
		1:         1,
		127:       1,
		128:       2,
		255:       2,
		256:       3,
		65535:     3,
		65536:     4,
		1 << 24:   5,
		1<<24 - 1: 4,
	}
	for length, want := range tests {
		if got := lengthOctets(length); got != want {
			t.Errorf("lengthOctets(%d) = %d, want %d", length, got, want)
		}
	}
}

func TestAppendHeader(t *testing.T) {
	tests := []struct {
		length int
		want   []byte
	}{
		{0, []byte{0x04, 0x00}},
		{127, []byte{0x04, 0x7F}},
		{128, []byte{0x04, 0x81, 0x80}},
		{200, []byte{0x04, 0x81, 0xC8}},
		{300, []byte{0x04, 0x82, 0x01, 0x2C}},
		{65536, []byte{0x04, 0x83, 0x01, 0x00, 0x00}},
		{1 << 24, []byte{0x04, 0x84, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, tc := range tests {
		t.Run(strconv.Itoa(tc.length), func(t *testing.T) {
			got := appendHeader(nil, TagOctetString, tc.length)
			if !bytes.Equal(got, tc.want) {
				t.Errorf("appendHeader(0x04, %d) = %# x, want %# x", tc.length, got, tc.want)
			}
		})
	}
}

func TestLongLengthEncoding(t *testing.T) {
	// A node with 200 content octets needs the long length form.
	content := bytes.Repeat([]byte{0xAB}, 200)
	got, err := OctetString(content).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte{0x04, 0x81, 0xC8}, content...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x..., want %x...", got[:4], want[:4])
	}
}

func TestLengthsStopAtIndefinite(t *testing.T) {
	// The length pass must not force a callback that comes after an
	// indefinite sibling: its content may only exist once the sibling has
	// been streamed.
	calls := 0
	n := Sequence(
		OctetStringReaderSize(bytes.NewReader(make([]byte, 4)), 1),
		OctetStringFunc(func() ([]byte, error) {
			calls++
			return []byte{1}, nil
		}),
	)
	if err := n.lengths(); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("callback ran during the length pass")
	}
	if n.state != lenIndefinite {
		t.Errorf("state = %d, want lenIndefinite", n.state)
	}
	if _, err := n.Bytes(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times during encode, want 1", calls)
	}
}
