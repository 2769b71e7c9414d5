// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oid provides the well-known object identifiers used when building
// X.509 certificates and PKCS#7 structures.
package oid

import "codello.dev/dertree"

// X.520 attribute types used in distinguished names.
var (
	CommonName         = dertree.ObjectIdentifier{2, 5, 4, 3}
	Country            = dertree.ObjectIdentifier{2, 5, 4, 6}
	Locality           = dertree.ObjectIdentifier{2, 5, 4, 7}
	Province           = dertree.ObjectIdentifier{2, 5, 4, 8}
	Organization       = dertree.ObjectIdentifier{2, 5, 4, 10}
	OrganizationalUnit = dertree.ObjectIdentifier{2, 5, 4, 11}
)

// Public key, signature and digest algorithms.
var (
	ECPublicKey     = dertree.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	P256            = dertree.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	ECDSAWithSHA256 = dertree.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	RSAEncryption   = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	SHA256WithRSA   = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	SHA256          = dertree.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
)

// PKCS#7/CMS content types and signed attributes.
var (
	Data                   = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	SignedData             = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	ContentType            = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	MessageDigest          = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	SigningTime            = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	CMSAlgorithmProtection = dertree.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 52}
)

// X.509 certificate extensions.
var (
	SubjectKeyID = dertree.ObjectIdentifier{2, 5, 29, 14}
	KeyUsage     = dertree.ObjectIdentifier{2, 5, 29, 15}
)
