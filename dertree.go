// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dertree implements a tree model for values encoded using the ASN.1
// Distinguished Encoding Rules defined in [Rec. ITU-T X.690]. A [Node] is a
// single ASN.1 value, either a primitive value holding content octets or a
// constructed value holding other nodes. Trees are assembled from the factory
// functions in this package and serialized in a single pass via [Node.Encode]
// or [Node.Bytes].
//
// # Definite and Indefinite Lengths
//
// Serialization uses the definite-length format wherever the length of a value
// is known before its content has to be produced. Lengths are calculated for
// the entire tree up front, so even large trees are written in one streaming
// pass without buffering the whole encoding.
//
// Two kinds of nodes defer their content to encoding time:
//
//   - [OctetStringFunc] obtains its content from a callback. The callback runs
//     during the length calculation of the first encode, so its result still
//     participates in definite-length encoding. This suits content that must
//     be computed after earlier parts of the tree have been produced, such as
//     a signature over preceding fields.
//   - [OctetStringReader] obtains its content from an [io.Reader]. If the
//     reader holds more data than the configured chunk size, the length of the
//     node cannot be known up front. The node and every node above it then
//     switch to the indefinite-length format of the Basic Encoding Rules and
//     the content is written in chunks as it is read.
//
// For full control over an indefinite-length encoding, [StartIndefinite]
// opens an indefinite-length value directly on an [io.Writer]. Nodes can then
// be encoded into the enclosed scope and [Indefinite.Close] terminates it.
// All enclosing values of an indefinite-length value must themselves use the
// indefinite form, which makes this approach verbose for deeply nested
// structures; the reader-backed nodes above handle the switch automatically.
//
// Nodes do not copy the byte slices and child slices handed to the factory
// functions. Modifying such data after the fact also changes the node.
// Conversely nodes never leak internal state: [Node.Bytes] returns a fresh
// slice on every call.
//
// [Rec. ITU-T X.690]: https://www.itu.int/rec/T-REC-X.690
package dertree

import (
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
)

// A Node is a single value in an ASN.1 tree. A Node exists on one of three
// levels of pre-computation: it may hold a complete encoding, raw content
// octets, or child nodes whose encodings make up its content. At least one
// level must be present.
//
// Nodes are created via the factory functions in this package. The zero value
// of Node is not a valid node.
type Node struct {
	tag byte

	// set is true if the node was created as a SET. The children of a set
	// are ordered by their encodings during serialization.
	set bool

	// The content of a node, at most one of the following is non-nil. value
	// holds raw content octets. supplier defers the content to a callback
	// that runs during length calculation. source reads the content from a
	// stream and is the only way a node becomes indefinite on its own.
	// children holds the nodes of a constructed value.
	value    []byte
	supplier func() ([]byte, error)
	source   *stream
	children []*Node

	// encoded caches the full encoding including tag and length octets. It
	// is set when a node wraps an external encoding and when the node is
	// serialized as a member of a SET, where the encoding must be produced
	// ahead of time for ordering and is worth keeping.
	encoded []byte

	// err holds a construction error. Factory functions validate their
	// input and defer any failure to the first encode.
	err error

	// length is the number of content octets and lenlen the number of
	// length octets. Both can be calculated without producing the actual
	// encoding, which is what makes single-pass streaming output possible.
	// state tracks whether the calculation has run and whether the node
	// requires the indefinite-length format.
	state  lenState
	length int
	lenlen int
}

// errNode returns a node that fails with err when encoded.
func errNode(err error) *Node {
	return &Node{err: err}
}

// Tag returns the identifier octet of n.
func (n *Node) Tag() byte {
	if n.encoded != nil {
		return n.encoded[0]
	}
	return n.tag
}

// Sequence returns a SEQUENCE node containing the given nodes in order.
func Sequence(nodes ...*Node) *Node {
	return &Node{tag: TagSequence, children: nodes}
}

// Set returns a SET node containing the given nodes. During serialization the
// nodes are ordered by the lexicographic order of their complete encodings,
// as required for a SET OF value in DER.
func Set(nodes ...*Node) *Node {
	return &Node{tag: TagSet, set: true, children: nodes}
}

// Context returns a constructed context-specific node with the given tag
// number, containing the given nodes in order. Context panics if number
// exceeds 30.
func Context(number uint8, nodes ...*Node) *Node {
	return &Node{tag: identifier(ClassContextSpecific, true, number), children: nodes}
}

// Application returns a constructed application node with the given tag
// number, containing the given nodes in order. Application panics if number
// exceeds 30.
func Application(number uint8, nodes ...*Node) *Node {
	return &Node{tag: identifier(ClassApplication, true, number), children: nodes}
}

// Raw returns a node with the given identifier octet and raw content octets.
// The content is used verbatim, making Raw suitable for types that have no
// dedicated factory function.
func Raw(tag byte, content []byte) *Node {
	return &Node{tag: tag, value: content}
}

// Wrap returns a node holding a complete encoding produced elsewhere. The
// encoding must be a full data value including tag and length octets; it is
// written to the output verbatim.
func Wrap(encoding []byte) *Node {
	if len(encoding) == 0 {
		return errNode(errors.New("empty encoding"))
	}
	return &Node{tag: encoding[0], encoded: encoding}
}

// Implicit returns a copy of n tagged as a constructed context-specific value
// with the given tag number. The copy shares content and children with n but
// owns its cached encoding, so n remains unchanged. Implicit panics if number
// exceeds 30.
func (n *Node) Implicit(number uint8) *Node {
	c := *n
	c.tag = identifier(ClassContextSpecific, true, number)
	if c.encoded != nil {
		c.encoded = slices.Clone(c.encoded)
		c.encoded[0] = c.tag
	}
	return &c
}

// Encode writes the complete encoding of n to w. Lengths for the entire tree
// are calculated first, then the output is produced in a single pass. If any
// node in the tree was constructed from invalid input, or a content callback
// or stream fails, encoding stops with that error.
func (n *Node) Encode(w io.Writer) error {
	if err := n.lengths(); err != nil {
		return err
	}
	return n.write(w)
}

// Bytes returns the complete encoding of n. The returned slice is not shared
// with the internal state of n.
func (n *Node) Bytes() ([]byte, error) {
	if n.encoded != nil {
		return slices.Clone(n.encoded), nil
	}
	if err := n.lengths(); err != nil {
		return nil, err
	}
	return n.appendTo(nil)
}

// appendTo appends the encoding of n to dst. Lengths must have been
// calculated beforehand.
func (n *Node) appendTo(dst []byte) ([]byte, error) {
	buf := newSliceWriter(dst, n.encodedLen())
	if err := n.write(buf); err != nil {
		return nil, err
	}
	return *buf, nil
}

// String returns a representation of the tree structure of n. It is meant for
// debugging; the output format is not stable.
func (n *Node) String() string {
	var sb strings.Builder
	n.dump(&sb, "", "")
	return sb.String()
}

// dump writes the structure of the subtree rooted at n to sb. here identifies
// the position of n within the whole tree. dump does not change any internal
// state.
func (n *Node) dump(sb *strings.Builder, here, indent string) {
	sb.WriteByte('[')
	sb.WriteString(here)
	sb.WriteByte(']')
	sb.WriteString(indent)
	if n.tag != 0 || n.encoded == nil {
		sb.WriteString(" : ")
		sb.WriteString(tagString(n.tag))
	}
	if n.encoded != nil {
		sb.WriteString(" : ")
		sb.WriteString(strconv.Itoa(len(n.encoded)))
		sb.WriteString(" raw bytes")
	}
	if n.value != nil {
		sb.WriteString(" : ")
		sb.WriteString(strconv.Itoa(len(n.value)))
		sb.WriteString(" content bytes")
	}
	switch n.state {
	case lenKnown:
		sb.WriteString(" : length = ")
		sb.WriteString(strconv.Itoa(n.length))
	case lenIndefinite:
		sb.WriteString(" : indefinite length")
	}
	sb.WriteByte('\n')
	for i, c := range n.children {
		c.dump(sb, here+strconv.Itoa(i), indent+"  ")
	}
}
