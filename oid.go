// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dertree

import (
	"slices"
	"strconv"
	"strings"

	"codello.dev/dertree/internal/vlq"
)

// An ObjectIdentifier represents an ASN.1 OBJECT IDENTIFIER. The semantics of
// an object identifier are specified in [Rec. ITU-T X.660].
//
// [Rec. ITU-T X.660]: https://www.itu.int/rec/T-REC-X.660
type ObjectIdentifier []uint

// Equal reports whether oid and other represent the same identifier.
func (oid ObjectIdentifier) Equal(other ObjectIdentifier) bool {
	return slices.Equal(oid, other)
}

// String returns the dot-separated notation of oid.
func (oid ObjectIdentifier) String() string {
	var s strings.Builder
	s.Grow(32)

	buf := make([]byte, 0, 19)
	for i, v := range oid {
		if i > 0 {
			s.WriteByte('.')
		}
		s.Write(strconv.AppendInt(buf, int64(v), 10))
	}

	return s.String()
}

// isValid reports whether oid can be encoded. An identifier needs at least two
// arcs, the first arc must be 0, 1 or 2 and under the arcs 0 and 1 the second
// arc must be below 40.
func (oid ObjectIdentifier) isValid() bool {
	return len(oid) >= 2 && oid[0] <= 2 && (oid[0] == 2 || oid[1] < 40)
}

// OID returns an OBJECT IDENTIFIER node. The first two arcs are packed into a
// single base-128 number, the remaining arcs follow as individual base-128
// numbers. OID panics if oid is not a valid object identifier; a malformed
// identifier is a programming error.
func OID(oid ObjectIdentifier) *Node {
	if !oid.isValid() {
		panic("dertree: invalid object identifier " + oid.String())
	}
	w := newSliceWriter(nil, len(oid)+1)
	vlq.Write(w, 40*oid[0]+oid[1])
	for _, arc := range oid[2:] {
		vlq.Write(w, arc)
	}
	return &Node{tag: TagOID, value: *w}
}
