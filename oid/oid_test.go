// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oid

import (
	"encoding/hex"
	"testing"

	"codello.dev/dertree"
)

func TestEncodings(t *testing.T) {
	tests := map[string]struct {
		oid  dertree.ObjectIdentifier
		want string
	}{
		"CommonName":      {CommonName, "0603550403"},
		"SignedData":      {SignedData, "06092a864886f70d010702"},
		"Data":            {Data, "06092a864886f70d010701"},
		"MessageDigest":   {MessageDigest, "06092a864886f70d010904"},
		"SHA256":          {SHA256, "0609608648016503040201"},
		"ECDSAWithSHA256": {ECDSAWithSHA256, "06082a8648ce3d040302"},
		"SubjectKeyID":    {SubjectKeyID, "0603551d0e"},
		"KeyUsage":        {KeyUsage, "0603551d0f"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := dertree.OID(tc.oid).Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if hex.EncodeToString(got) != tc.want {
				t.Errorf("OID(%v) = %s, want %s", tc.oid, hex.EncodeToString(got), tc.want)
			}
		})
	}
}
