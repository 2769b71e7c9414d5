// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import "io"

// An Indefinite is an open indefinite-length value on an [io.Writer]. It is
// created by [StartIndefinite] and must be terminated by a call to Close.
// While the value is open, the content of the enclosing value is written
// directly to the underlying writer, typically by encoding nodes into it.
type Indefinite struct {
	w io.Writer
}

// StartIndefinite opens an indefinite-length value with the given tag on w by
// writing the identifier octet, with the constructed bit forced on, followed
// by the indefinite-length marker. The caller then writes the enclosed data
// values and terminates the value with Close.
//
// This is the manual counterpart to the automatic switch performed by
// reader-backed nodes. It is needed when several enclosing levels of a
// structure have to use the indefinite-length format, since every value
// containing an indefinite-length value must itself be indefinite.
func StartIndefinite(w io.Writer, tag byte) (*Indefinite, error) {
	if _, err := w.Write([]byte{tag | constructedBit, 0x80}); err != nil {
		return nil, err
	}
	return &Indefinite{w: w}, nil
}

// Write passes p through to the underlying writer. The caller is responsible
// for only writing complete BER data values.
func (i *Indefinite) Write(p []byte) (int, error) {
	return i.w.Write(p)
}

// Encode writes the complete encoding of n into the open value.
func (i *Indefinite) Encode(n *Node) error {
	return n.Encode(i.w)
}

// Close terminates the value by writing the end-of-contents marker. Close must
// be called exactly once; a second call writes a second marker.
func (i *Indefinite) Close() error {
	_, err := i.w.Write(eoc)
	return err
}
