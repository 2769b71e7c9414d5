// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"strconv"
	"strings"
)

// Class holds the class part of an ASN.1 tag. The class acts as a namespace for
// the tag number. A Class value is an unsigned 2-bit integer. Class values
// whose value exceeds 2 bits are invalid.
//
//go:generate stringer -type=Class -trimprefix=Class
type Class uint8

// IsValid reports whether c is a valid Class value.
func (c Class) IsValid() bool {
	return c <= 3
}

// Predefined [Class] constants. These are all the possible values that can be
// encoded in the [Class] type.
const (
	ClassUniversal Class = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

// Identifier octets of the ASN.1 types produced by this package. The constants
// for SEQUENCE and SET include the constructed bit, all others use the
// primitive form. Tag numbers are assigned in Rec. ITU-T X.680, Section 8,
// Table 1.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagEnumerated      byte = 0x0A
	TagUTF8String      byte = 0x0C
	TagPrintableString byte = 0x13
	TagT61String       byte = 0x14
	TagIA5String       byte = 0x16
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
	TagGeneralString   byte = 0x1B
	TagUniversalString byte = 0x1C
	TagBMPString       byte = 0x1E
	TagSequence        byte = 0x30
	TagSet             byte = 0x31
)

// constructedBit marks an identifier octet as using the constructed encoding.
const constructedBit byte = 0x20

// ContextTag returns the identifier octet of a constructed context-specific
// tag with the given number. ContextTag panics if number exceeds 30, the
// largest tag number that fits into a single identifier octet.
func ContextTag(number uint8) byte {
	return identifier(ClassContextSpecific, true, number)
}

// ApplicationTag returns the identifier octet of a constructed application
// tag with the given number. ApplicationTag panics if number exceeds 30, the
// largest tag number that fits into a single identifier octet.
func ApplicationTag(number uint8) byte {
	return identifier(ClassApplication, true, number)
}

// identifier packs class, the constructed flag and a tag number into a single
// identifier octet. Multi-octet identifiers are not supported, so number must
// not exceed 30.
func identifier(class Class, constructed bool, number uint8) byte {
	if number > 30 {
		panic("dertree: tag number " + strconv.Itoa(int(number)) + " does not fit into a single identifier octet")
	}
	b := byte(class)<<6 | number
	if constructed {
		b |= constructedBit
	}
	return b
}

// tagString returns a representation of an identifier octet in a format
// similar to the one used in ASN.1 notation. The tag number is enclosed by
// square brackets and prefixed with the class used. To avoid ambiguity the
// UNIVERSAL word is used for universal tags, although this is not valid ASN.1
// syntax.
func tagString(tag byte) string {
	number := strconv.Itoa(int(tag & 0x1F))
	if class := Class(tag >> 6); class != ClassContextSpecific {
		return "[" + strings.ToUpper(class.String()) + " " + number + "]"
	}
	return "[" + number + "]"
}
