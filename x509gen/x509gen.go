// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x509gen builds X.509 certificates as dertree node trees. It covers
// the subset of certificate features needed for self-issued and leaf
// certificates: version 3, a UTF8String-based subject and issuer, a validity
// window, and the key usage and subject key identifier extensions.
package x509gen

import (
	"crypto"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"codello.dev/dertree"
	"codello.dev/dertree/oid"
)

// SignatureAlgorithm selects the algorithm used to sign a certificate.
type SignatureAlgorithm int

const (
	// ECDSAWithSHA256 signs with an EC key over SHA-256.
	ECDSAWithSHA256 SignatureAlgorithm = iota
	// SHA256WithRSA signs with an RSA key using PKCS#1 v1.5 over SHA-256.
	SHA256WithRSA
)

// Key usage bits as numbered in the X.509 KeyUsage named bit list. The values
// are bit indices for a [bitset.BitSet].
const (
	KeyUsageDigitalSignature uint = iota
	KeyUsageContentCommitment
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageCertSign
	KeyUsageCRLSign
	KeyUsageEncipherOnly
	KeyUsageDecipherOnly
)

// AttributeTypeAndValue is a single attribute of a distinguished name, for
// example a common name or an organization.
type AttributeTypeAndValue struct {
	Type  dertree.ObjectIdentifier
	Value string
}

// Name is an ordered distinguished name. Each attribute becomes its own
// relative distinguished name.
type Name []AttributeTypeAndValue

// node returns the X.501 encoding of n: a SEQUENCE of single-attribute SETs.
func (n Name) node() *dertree.Node {
	rdns := make([]*dertree.Node, len(n))
	for i, atv := range n {
		rdns[i] = dertree.Set(dertree.Sequence(
			dertree.OID(atv.Type),
			dertree.UTF8String(atv.Value),
		))
	}
	return dertree.Sequence(rdns...)
}

// Template describes the certificate to create.
type Template struct {
	SerialNumber *big.Int
	Subject      Name
	Issuer       Name

	NotBefore time.Time
	NotAfter  time.Time

	SignatureAlgorithm SignatureAlgorithm

	// KeyUsage, if non-nil, adds a key usage extension with the given
	// bits. Use the KeyUsage constants as bit indices.
	KeyUsage *bitset.BitSet

	// SubjectKeyID adds a subject key identifier extension derived from
	// the public key.
	SubjectKeyID bool
}

// Create builds and signs a certificate from tpl. The certificate carries the
// given public key and is signed with priv, so issuing a certificate for a
// different subject key is simply a matter of passing that key's public half.
// The result is the complete DER encoding of the certificate.
func Create(tpl *Template, pub crypto.PublicKey, priv crypto.Signer) ([]byte, error) {
	if tpl.SerialNumber == nil {
		return nil, errors.New("x509gen: template has no serial number")
	}
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("x509gen: encoding public key: %w", err)
	}

	children := []*dertree.Node{
		dertree.Context(0, dertree.Integer(2)), // X.509 v3
		dertree.BigInt(tpl.SerialNumber),
		tpl.SignatureAlgorithm.node(),
		tpl.Issuer.node(),
		dertree.Sequence(dertree.Time(tpl.NotBefore), dertree.Time(tpl.NotAfter)),
		tpl.Subject.node(),
		dertree.Wrap(spki),
	}

	var exts []*dertree.Node
	if tpl.KeyUsage != nil {
		exts = append(exts, extension(oid.KeyUsage, dertree.NamedBits(tpl.KeyUsage)))
	}
	if tpl.SubjectKeyID {
		skid, err := subjectKeyID(spki)
		if err != nil {
			return nil, err
		}
		exts = append(exts, extension(oid.SubjectKeyID, dertree.OctetString(skid)))
	}
	if len(exts) > 0 {
		children = append(children, dertree.Context(3, dertree.Sequence(exts...)))
	}

	tbs, err := dertree.Sequence(children...).Bytes()
	if err != nil {
		return nil, fmt.Errorf("x509gen: encoding certificate: %w", err)
	}
	digest := sha256.Sum256(tbs)
	sig, err := priv.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("x509gen: signing certificate: %w", err)
	}

	cert := dertree.Sequence(
		dertree.Wrap(tbs),
		tpl.SignatureAlgorithm.node(),
		dertree.BitString(sig, 0),
	)
	enc, err := cert.Bytes()
	if err != nil {
		return nil, fmt.Errorf("x509gen: encoding certificate: %w", err)
	}
	return enc, nil
}

// node returns the AlgorithmIdentifier of a. RSA algorithm identifiers carry
// an explicit NULL parameter, the ECDSA ones have no parameter.
func (a SignatureAlgorithm) node() *dertree.Node {
	switch a {
	case SHA256WithRSA:
		return dertree.Sequence(dertree.OID(oid.SHA256WithRSA), dertree.Null())
	default:
		return dertree.Sequence(dertree.OID(oid.ECDSAWithSHA256))
	}
}

// extension returns an Extension node. The value node is embedded as the
// content of the extnValue OCTET STRING.
func extension(id dertree.ObjectIdentifier, value *dertree.Node) *dertree.Node {
	return dertree.Sequence(dertree.OID(id), dertree.OctetStringNode(value))
}

// subjectKeyID derives a key identifier from an encoded SubjectPublicKeyInfo:
// the SHA-1 digest of the subjectPublicKey BIT STRING content.
func subjectKeyID(spki []byte) ([]byte, error) {
	input := cryptobyte.String(spki)
	var inner, algorithm cryptobyte.String
	var pk asn1.BitString
	if !input.ReadASN1(&inner, casn1.SEQUENCE) ||
		!inner.ReadASN1(&algorithm, casn1.SEQUENCE) ||
		!inner.ReadASN1BitString(&pk) {
		return nil, errors.New("x509gen: malformed SubjectPublicKeyInfo")
	}
	sum := sha1.Sum(pk.Bytes)
	return sum[:], nil
}
