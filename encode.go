// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"bytes"
	"fmt"
	"io"
	"slices"
)

// eoc is the end-of-contents marker terminating an indefinite-length value.
var eoc = []byte{0x00, 0x00}

// write serializes n to w. The length calculation for n must have run; lengths
// for children that the calculation could not reach are computed here, right
// before the child is written.
func (n *Node) write(w io.Writer) error {
	if n.err != nil {
		return n.err
	}
	if n.encoded != nil {
		_, err := w.Write(n.encoded)
		return err
	}

	var hdr [6]byte
	if n.state == lenIndefinite {
		// The indefinite-length format exists only for constructed values.
		if _, err := w.Write([]byte{n.tag | constructedBit, 0x80}); err != nil {
			return err
		}
	} else if _, err := w.Write(appendHeader(hdr[:0], n.tag, n.length)); err != nil {
		return err
	}

	var err error
	switch {
	case n.source != nil:
		err = n.source.writeChunks(w, n.tag)
	case n.value != nil:
		_, err = w.Write(n.value)
	case n.set && len(n.children) > 1:
		err = n.writeSet(w)
	default:
		for _, c := range n.children {
			if err = c.lengths(); err != nil {
				return err
			}
			if err = c.write(w); err != nil {
				return err
			}
		}
	}
	if err != nil {
		return err
	}

	if n.state == lenIndefinite {
		_, err = w.Write(eoc)
	}
	return err
}

// writeSet writes the children of a SET node in the canonical DER order, that
// is sorted by the lexicographic order of their complete encodings. The
// encodings are produced ahead of time and cached on the children, so a later
// encode of the same tree reuses them.
func (n *Node) writeSet(w io.Writer) error {
	encodings := make([][]byte, len(n.children))
	for i, c := range n.children {
		if c.encoded == nil {
			if err := c.lengths(); err != nil {
				return err
			}
			enc, err := c.appendTo(nil)
			if err != nil {
				return err
			}
			c.encoded = enc
		}
		encodings[i] = c.encoded
	}
	slices.SortFunc(encodings, bytes.Compare)
	for _, enc := range encodings {
		if _, err := w.Write(enc); err != nil {
			return err
		}
	}
	return nil
}

// stream is the content of a node backed by an [io.Reader]. prefix holds the
// bytes read ahead at construction time and chunk is the size of the segments
// the remaining data is written in.
type stream struct {
	r      io.Reader
	prefix []byte
	chunk  int
}

// writeChunks writes the content of s as a series of definite-length data
// values with the given tag: first the prefix, then one value per chunk read
// from the reader. The enclosing indefinite-length header and the trailing
// end-of-contents marker are written by the caller.
func (s *stream) writeChunks(w io.Writer, tag byte) error {
	var hdr [6]byte
	if len(s.prefix) > 0 {
		if _, err := w.Write(appendHeader(hdr[:0], tag, len(s.prefix))); err != nil {
			return err
		}
		if _, err := w.Write(s.prefix); err != nil {
			return err
		}
	}
	buf := make([]byte, s.chunk)
	for {
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			if _, werr := w.Write(appendHeader(hdr[:0], tag, n)); werr != nil {
				return werr
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return fmt.Errorf("dertree: content stream: %w", err)
		}
	}
}

// sliceWriter is an [io.Writer] appending to a byte slice. The pointed-to
// slice grows as data is written.
type sliceWriter []byte

// newSliceWriter returns a sliceWriter appending to dst with room for at least
// capHint additional bytes.
func newSliceWriter(dst []byte, capHint int) *sliceWriter {
	if capHint > 0 {
		dst = slices.Grow(dst, capHint)
	}
	w := sliceWriter(dst)
	return &w
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}

func (w *sliceWriter) WriteByte(b byte) error {
	*w = append(*w, b)
	return nil
}
