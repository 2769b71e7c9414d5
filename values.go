// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/bits"
	"time"
	"unicode/utf8"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/constraints"
)

// DefaultStreamThreshold is the number of bytes [OctetStringReader] reads
// ahead before deciding that a stream is too large for the definite-length
// format.
const DefaultStreamThreshold = 1024

// Integer returns an INTEGER node. The value is encoded as a minimal-length
// two's complement number.
func Integer[T constraints.Signed](v T) *Node {
	return &Node{tag: TagInteger, value: appendInt(nil, int64(v))}
}

// Enumerated returns an ENUMERATED node. The content octets are identical to
// those of [Integer].
func Enumerated[T constraints.Signed](v T) *Node {
	return &Node{tag: TagEnumerated, value: appendInt(nil, int64(v))}
}

// BigInt returns an INTEGER node for an arbitrarily large value.
func BigInt(v *big.Int) *Node {
	if v == nil {
		return errNode(errors.New("dertree: nil *big.Int"))
	}
	return &Node{tag: TagInteger, value: bigIntContents(v)}
}

// appendInt appends the minimal two's complement encoding of v to dst. The
// result is between 1 and 8 bytes long.
func appendInt(dst []byte, v int64) []byte {
	u := uint64(v)
	var l int
	if v >= 0 {
		// one extra bit for the sign
		l = (bits.Len64(u) + 8) / 8
	} else {
		// leading 0xFF octets are redundant while the following octet
		// has its high bit set
		l = (72 - bits.LeadingZeros64(^u)) / 8
	}
	var bs [8]byte
	binary.BigEndian.PutUint64(bs[:], u)
	return append(dst, bs[8-l:]...)
}

// bigIntContents returns the minimal two's complement encoding of v.
func bigIntContents(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{0}
	case -1:
		// Convert to two's complement form: invert the magnitude minus
		// one. If the most significant bit is unset the result needs a
		// leading 0xFF octet to stay negative.
		m := new(big.Int).Neg(v)
		m.Sub(m, big.NewInt(1))
		bs := m.Bytes()
		for i := range bs {
			bs[i] ^= 0xFF
		}
		if len(bs) == 0 || bs[0]&0x80 == 0 {
			bs = append([]byte{0xFF}, bs...)
		}
		return bs
	default:
		bs := v.Bytes()
		if bs[0]&0x80 != 0 {
			// padded with a zero octet to keep the number positive
			bs = append([]byte{0x00}, bs...)
		}
		return bs
	}
}

// Boolean returns a BOOLEAN node. True is encoded as the single octet 0xFF,
// false as 0x00.
func Boolean(v bool) *Node {
	if v {
		return &Node{tag: TagBoolean, value: []byte{0xFF}}
	}
	return &Node{tag: TagBoolean, value: []byte{0x00}}
}

// Null returns a NULL node.
func Null() *Node {
	return &Node{tag: TagNull, value: []byte{}}
}

// BitString returns a BIT STRING node. bits holds the bit data packed into
// bytes and unusedBits is the number of unused bits in the final byte.
func BitString(bits []byte, unusedBits uint8) *Node {
	if unusedBits > 7 || (len(bits) == 0 && unusedBits != 0) {
		return errNode(errors.New("dertree: invalid number of unused bits"))
	}
	content := make([]byte, len(bits)+1)
	content[0] = unusedBits
	copy(content[1:], bits)
	return &Node{tag: TagBitString, value: content}
}

// NamedBits returns a BIT STRING node holding a named bit list in its DER
// form: trailing zero bits are not encoded and the unused-bits octet is
// derived from the highest set bit. An empty set encodes as a BIT STRING of
// zero bits.
func NamedBits(set *bitset.BitSet) *Node {
	n := 0
	if set != nil {
		for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
			n = int(i) + 1
		}
	}
	if n == 0 {
		return &Node{tag: TagBitString, value: []byte{0}}
	}
	content := make([]byte, (n+7)/8+1)
	content[0] = byte((len(content)-1)*8 - n)
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		content[1+i/8] |= 0x80 >> (i % 8)
	}
	return &Node{tag: TagBitString, value: content}
}

// OctetString returns an OCTET STRING node with the given content octets.
func OctetString(data []byte) *Node {
	return &Node{tag: TagOctetString, value: data}
}

// OctetStringNode returns an OCTET STRING node whose content is the complete
// encoding of another node. This embeds a value's DER bytes as an opaque
// OCTET STRING of its own.
func OctetStringNode(n *Node) *Node {
	return &Node{tag: TagOctetString, children: []*Node{n}}
}

// OctetStringFunc returns an OCTET STRING node that obtains its content from
// fn. The callback runs at most once, during the length calculation of the
// first encode, and its result is memoized. This suits content that is only
// available at encoding time, such as a digest over fields written earlier in
// the same tree. If fn fails, the error is reported by the encode call and the
// callback runs again on the next attempt.
func OctetStringFunc(fn func() ([]byte, error)) *Node {
	return &Node{tag: TagOctetString, supplier: fn}
}

// OctetStringReader returns an OCTET STRING node that reads its content from
// r. It is equivalent to [OctetStringReaderSize] with [DefaultStreamThreshold].
func OctetStringReader(r io.Reader) *Node {
	return OctetStringReaderSize(r, DefaultStreamThreshold)
}

// OctetStringReaderSize returns an OCTET STRING node that reads its content
// from r. Up to threshold bytes are read ahead immediately. If that exhausts
// r, the node behaves like a plain [OctetString] of the data read. Otherwise
// the node switches itself and every enclosing node to the indefinite-length
// format and the remaining data is written in segments of threshold bytes as
// the encode pass drains r.
//
// The reader is consumed during the first encode; encoding such a node twice
// does not reproduce the streamed content. OctetStringReaderSize panics if
// threshold is not positive.
func OctetStringReaderSize(r io.Reader, threshold int) *Node {
	if threshold < 1 {
		panic("dertree: stream threshold must be positive")
	}
	prefix := make([]byte, threshold)
	n, err := io.ReadFull(r, prefix)
	switch err {
	case io.EOF, io.ErrUnexpectedEOF:
		return &Node{tag: TagOctetString, value: prefix[:n]}
	case nil:
	default:
		return errNode(fmt.Errorf("dertree: content stream: %w", err))
	}
	var probe [1]byte
	switch _, err := io.ReadFull(r, probe[:]); err {
	case io.EOF:
		return &Node{tag: TagOctetString, value: prefix}
	case nil:
	default:
		return errNode(fmt.Errorf("dertree: content stream: %w", err))
	}
	return &Node{tag: TagOctetString, source: &stream{
		r:      io.MultiReader(bytes.NewReader(probe[:]), r),
		prefix: prefix,
		chunk:  threshold,
	}}
}

// Time returns a node encoding t in the format conventional for X.509
// validity: UTCTime for years 1950 through 2049 and GeneralizedTime
// otherwise. The value is always in UTC with seconds precision.
func Time(t time.Time) *Node {
	t = t.UTC()
	if y := t.Year(); y < 1950 || y >= 2050 {
		return GeneralizedTime(t)
	}
	return UTCTime(t)
}

// UTCTime returns a UTCTime node in the format YYMMDDHHMMSSZ. The value is
// encoded in UTC; only years 1950 through 2049 can be represented.
func UTCTime(t time.Time) *Node {
	t = t.UTC()
	if y := t.Year(); y < 1950 || y >= 2050 {
		return errNode(errors.New("dertree: year outside of UTCTime range"))
	}
	return &Node{tag: TagUTCTime, value: []byte(t.Format("060102150405Z"))}
}

// GeneralizedTime returns a GeneralizedTime node in the format
// YYYYMMDDHHMMSSZ. The value is encoded in UTC with seconds precision.
func GeneralizedTime(t time.Time) *Node {
	t = t.UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return errNode(errors.New("dertree: year outside of GeneralizedTime range"))
	}
	return &Node{tag: TagGeneralizedTime, value: []byte(t.Format("20060102150405Z"))}
}

// UTF8String returns a UTF8String node. s must be valid UTF-8.
func UTF8String(s string) *Node {
	if !utf8.ValidString(s) {
		return errNode(errors.New("dertree: invalid UTF-8 string"))
	}
	return &Node{tag: TagUTF8String, value: []byte(s)}
}

// PrintableString returns a PrintableString node. s is limited to the
// PrintableString character set: letters, digits, space and '()+,-./:=?.
func PrintableString(s string) *Node {
	for i := 0; i < len(s); i++ {
		if !isPrintable(s[i]) {
			return errNode(errors.New("dertree: invalid character in PrintableString"))
		}
	}
	return &Node{tag: TagPrintableString, value: []byte(s)}
}

// isPrintable reports whether b is in the ASN.1 PrintableString set.
func isPrintable(b byte) bool {
	return 'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z' ||
		'0' <= b && b <= '9' ||
		'\'' <= b && b <= ')' ||
		'+' <= b && b <= '/' ||
		b == ' ' ||
		b == ':' ||
		b == '=' ||
		b == '?'
}

// IA5String returns an IA5String node. s is limited to ASCII characters.
func IA5String(s string) *Node {
	return asciiString(TagIA5String, s)
}

// GeneralString returns a GeneralString node. s is limited to ASCII
// characters.
func GeneralString(s string) *Node {
	return asciiString(TagGeneralString, s)
}

// asciiString returns a node with the given tag whose content is the ASCII
// encoding of s.
func asciiString(tag byte, s string) *Node {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return errNode(errors.New("dertree: invalid character in ASCII string"))
		}
	}
	return &Node{tag: tag, value: []byte(s)}
}

// T61String returns a T61String node. The content is the ISO 8859-1 encoding
// of s, so every character must be below U+0100.
func T61String(s string) *Node {
	content := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return errNode(errors.New("dertree: invalid character in T61String"))
		}
		content = append(content, byte(r))
	}
	return &Node{tag: TagT61String, value: content}
}

// BMPString returns a BMPString node. The content is the big endian UCS-2
// encoding of s, so every character must be in the Basic Multilingual Plane.
func BMPString(s string) *Node {
	content := make([]byte, 0, 2*len(s))
	for _, r := range s {
		if r > 0xFFFF || (r >= 0xD800 && r < 0xE000) {
			return errNode(errors.New("dertree: invalid character in BMPString"))
		}
		content = append(content, byte(r>>8), byte(r))
	}
	return &Node{tag: TagBMPString, value: content}
}

// UniversalString returns a UniversalString node. The content is the big
// endian UCS-4 encoding of s.
func UniversalString(s string) *Node {
	if !utf8.ValidString(s) {
		return errNode(errors.New("dertree: invalid UTF-8 string"))
	}
	content := make([]byte, 0, 4*len(s))
	for _, r := range s {
		content = append(content, byte(r>>24), byte(r>>16), byte(r>>8), byte(r))
	}
	return &Node{tag: TagUniversalString, value: content}
}
