// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package berder re-encodes BER data values into strict DER. It resolves the
// two BER liberties a tree encoder may produce: indefinite-length values and
// constructed OCTET STRING segments. The result can be processed by parsers
// that insist on DER, such as encoding/asn1.
package berder

import (
	"bytes"
	"errors"
)

var (
	errEarlyEOF     = errors.New("berder: unexpected end of input")
	errLengthRange  = errors.New("berder: length out of range")
	errBadEOC       = errors.New("berder: malformed end-of-contents marker")
	errMixedContent = errors.New("berder: constructed string with non-matching segment")
	errTrailingData = errors.New("berder: trailing data after value")
)

// tagOctetString is the universal OCTET STRING tag number.
const tagOctetString = 0x04

// ToDER converts a single BER-encoded data value to DER.
func ToDER(ber []byte) ([]byte, error) {
	v, rest, err := decode(ber)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errTrailingData
	}
	buf := bytes.NewBuffer(make([]byte, 0, v.encodedLen()))
	if err := v.encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// value is a decoded data value that can re-encode itself in DER.
type value interface {
	// encode writes the DER encoding of the value to buf.
	encode(buf *bytes.Buffer) error
	// encodedLen returns the number of bytes encode will write.
	encodedLen() int
}

// decode parses one data value from r and returns it together with the
// remaining input.
func decode(r []byte) (value, []byte, error) {
	identifier, r, err := decodeIdentifier(r)
	if err != nil {
		return nil, nil, err
	}
	length, indefinite, r, err := decodeLength(r)
	if err != nil {
		return nil, nil, err
	}

	if identifier[0]&0x20 == 0 {
		if indefinite {
			// the indefinite format is restricted to constructed values
			return nil, nil, errLengthRange
		}
		if length > len(r) {
			return nil, nil, errEarlyEOF
		}
		return primitive{identifier, r[:length]}, r[length:], nil
	}

	var members []value
	if indefinite {
		for {
			if len(r) >= 2 && r[0] == 0 && r[1] == 0 {
				r = r[2:]
				break
			}
			if len(r) < 2 {
				return nil, nil, errEarlyEOF
			}
			var m value
			if m, r, err = decode(r); err != nil {
				return nil, nil, err
			}
			members = append(members, m)
		}
	} else {
		if length > len(r) {
			return nil, nil, errEarlyEOF
		}
		content := r[:length]
		r = r[length:]
		for len(content) > 0 {
			var m value
			if m, content, err = decode(content); err != nil {
				return nil, nil, err
			}
			members = append(members, m)
		}
	}

	// A constructed universal OCTET STRING is a BER segmentation of a
	// primitive value; DER requires the primitive form. Non-universal
	// classes keep their constructed encoding, their tag number carries no
	// string semantics.
	if len(identifier) == 1 && identifier[0] == 0x20|tagOctetString {
		v, err := flattenOctetString(members)
		if err != nil {
			return nil, nil, err
		}
		return v, r, nil
	}
	return constructed{identifier, members}, r, nil
}

// flattenOctetString merges the primitive segments of a constructed OCTET
// STRING into a single primitive value.
func flattenOctetString(members []value) (value, error) {
	var content []byte
	for _, m := range members {
		p, ok := m.(primitive)
		if !ok || len(p.identifier) != 1 || p.identifier[0] != tagOctetString {
			return nil, errMixedContent
		}
		content = append(content, p.content...)
	}
	return primitive{[]byte{tagOctetString}, content}, nil
}

// decodeIdentifier splits the identifier octets off r.
func decodeIdentifier(r []byte) ([]byte, []byte, error) {
	if len(r) < 1 {
		return nil, nil, errEarlyEOF
	}
	n := 1
	if r[0]&0x1F == 0x1F {
		// high tag numbers continue while the top bit is set
		for n < len(r) && r[n]&0x80 == 0x80 {
			n++
		}
		n++
		if n > len(r) {
			return nil, nil, errEarlyEOF
		}
	}
	return r[:n], r[n:], nil
}

// decodeLength parses the length octets at the start of r. It reports the
// indefinite form via the second return value.
func decodeLength(r []byte) (int, bool, []byte, error) {
	if len(r) < 1 {
		return 0, false, nil, errEarlyEOF
	}
	b := r[0]
	r = r[1:]
	switch {
	case b < 0x80:
		return int(b), false, r, nil
	case b == 0x80:
		return 0, true, r, nil
	}

	n := int(b & 0x7F)
	if n > 4 || n > len(r) {
		if n > len(r) {
			return 0, false, nil, errEarlyEOF
		}
		return 0, false, nil, errLengthRange
	}
	length := 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(r[i])
	}
	if length < 0 {
		return 0, false, nil, errLengthRange
	}
	return length, false, r[n:], nil
}

// encodeLength writes the DER length octets for the given content length.
func encodeLength(buf *bytes.Buffer, length int) error {
	if length < 0x80 {
		return buf.WriteByte(byte(length))
	}
	n := encodedLengthSize(length) - 1
	if err := buf.WriteByte(0x80 | byte(n)); err != nil {
		return err
	}
	for i := n; i > 0; i-- {
		if err := buf.WriteByte(byte(length >> (8 * (i - 1)))); err != nil {
			return err
		}
	}
	return nil
}

// encodedLengthSize returns the number of length octets DER uses for the
// given content length.
func encodedLengthSize(length int) int {
	if length < 0x80 {
		return 1
	}
	n := 2
	for l := length; l > 0xFF; l >>= 8 {
		n++
	}
	return n
}

// primitive is a data value in the primitive form.
type primitive struct {
	identifier []byte
	content    []byte
}

func (v primitive) encode(buf *bytes.Buffer) error {
	buf.Write(v.identifier)
	if err := encodeLength(buf, len(v.content)); err != nil {
		return err
	}
	_, err := buf.Write(v.content)
	return err
}

func (v primitive) encodedLen() int {
	return len(v.identifier) + encodedLengthSize(len(v.content)) + len(v.content)
}

// constructed is a data value in the constructed form.
type constructed struct {
	identifier []byte
	members    []value
}

func (v constructed) encode(buf *bytes.Buffer) error {
	buf.Write(v.identifier)
	length := 0
	for _, m := range v.members {
		length += m.encodedLen()
	}
	if err := encodeLength(buf, length); err != nil {
		return err
	}
	for _, m := range v.members {
		if err := m.encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (v constructed) encodedLen() int {
	length := 0
	for _, m := range v.members {
		length += m.encodedLen()
	}
	return len(v.identifier) + encodedLengthSize(length) + length
}
