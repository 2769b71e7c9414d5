// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import "fmt"

// lenState tracks the length calculation of a [Node]. Lengths are calculated
// lazily on the first encode and memoized afterwards.
type lenState uint8

const (
	// lenUnknown means the length calculation has not run yet.
	lenUnknown lenState = iota
	// lenKnown means the node has a definite content length.
	lenKnown
	// lenIndefinite means the node must use the indefinite-length format.
	// There is no definite length to record in this state.
	lenIndefinite
)

// lengths calculates the content length and the number of length octets for n
// and as much of its subtree as possible. The calculation is memoized; calling
// lengths a second time is a no-op.
//
// A node backed by a stream becomes indefinite without touching the stream.
// Inside a constructed node the calculation stops at the first indefinite
// child: content of later siblings may only become available after earlier
// siblings have been written, so their lengths must not be forced here. The
// encode pass resumes the calculation for such children in writing order.
func (n *Node) lengths() error {
	if n.err != nil {
		return n.err
	}
	if n.encoded != nil || n.state != lenUnknown {
		return nil
	}
	switch {
	case n.source != nil:
		n.state = lenIndefinite
		return nil
	case n.supplier != nil:
		content, err := n.supplier()
		if err != nil {
			return fmt.Errorf("dertree: content callback: %w", err)
		}
		n.value = content
		n.supplier = nil
		n.length = len(content)
	case n.value != nil:
		n.length = len(n.value)
	default:
		total := 0
		for _, c := range n.children {
			if c.encoded != nil {
				total += len(c.encoded)
				continue
			}
			if err := c.lengths(); err != nil {
				return err
			}
			if c.state == lenIndefinite {
				n.state = lenIndefinite
				return nil
			}
			total += 1 + c.lenlen + c.length
		}
		n.length = total
	}
	n.state = lenKnown
	n.lenlen = lengthOctets(n.length)
	return nil
}

// encodedLen returns the total number of bytes the encoding of n occupies, or
// 0 if that is not known. It is used to size output buffers.
func (n *Node) encodedLen() int {
	switch {
	case n.encoded != nil:
		return len(n.encoded)
	case n.state == lenKnown:
		return 1 + n.lenlen + n.length
	default:
		return 0
	}
}

// lengthOctets returns the number of octets needed to encode a definite
// content length, that is 1 for the short form and 1+N for the long form.
func lengthOctets(length int) int {
	if length < 0x80 {
		return 1
	}
	n := 2
	for l := length; l > 0xFF; l >>= 8 {
		n++
	}
	return n
}

// appendHeader appends the identifier octet and the definite-length octets for
// the given content length to dst.
func appendHeader(dst []byte, tag byte, length int) []byte {
	dst = append(dst, tag)
	if length < 0x80 {
		return append(dst, byte(length))
	}
	n := lengthOctets(length) - 1
	dst = append(dst, 0x80|byte(n))
	for i := n; i > 0; i-- {
		dst = append(dst, byte(length>>(8*(i-1))))
	}
	return dst
}
