// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkcs7

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"codello.dev/dertree/internal/berder"
)

var (
	oidData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidECDSASHA256   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidRSASHA256     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
)

// contentInfo is the outermost PKCS#7 structure.
type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// signedData is the SignedData structure of PKCS#7.
type signedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo      contentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []signerInfo  `asn1:"set"`
}

// signerInfo is a single SignerInfo of a SignedData structure.
type signerInfo struct {
	Version                   int
	IssuerAndSerial           issuerAndSerial
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   asn1.RawValue `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes asn1.RawValue `asn1:"optional,tag:1"`
}

// issuerAndSerial identifies the signer certificate.
type issuerAndSerial struct {
	Issuer asn1.RawValue
	Serial *big.Int
}

// attribute is a signed attribute: a type and a SET of values.
type attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue
}

// SignedData is a parsed PKCS#7 SignedData message.
type SignedData struct {
	// Content is the signed content, if the message carries it.
	Content []byte
	// Certificates are the certificates embedded in the message.
	Certificates []*x509.Certificate

	signerInfos []signerInfo
}

// Parse parses a SignedData message. The input may use any BER feature the
// tree encoder produces, in particular indefinite lengths and segmented
// octet strings; it is normalized to DER before parsing.
func Parse(data []byte) (*SignedData, error) {
	der, err := berder.ToDER(data)
	if err != nil {
		return nil, fmt.Errorf("pkcs7: normalizing input: %w", err)
	}
	var info contentInfo
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("pkcs7: parsing content info: %w", err)
	}
	if !info.ContentType.Equal(oidSignedData) {
		return nil, errors.New("pkcs7: not a signed-data message")
	}
	var sd signedData
	if _, err := asn1.Unmarshal(info.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("pkcs7: parsing signed data: %w", err)
	}

	result := &SignedData{signerInfos: sd.SignerInfos}
	if sd.ContentInfo.ContentType.Equal(oidData) && len(sd.ContentInfo.Content.Bytes) > 0 {
		if _, err := asn1.Unmarshal(sd.ContentInfo.Content.Bytes, &result.Content); err != nil {
			return nil, fmt.Errorf("pkcs7: parsing content: %w", err)
		}
	}
	rest := sd.Certificates.Bytes
	for len(rest) > 0 {
		var raw asn1.RawValue
		var err error
		if rest, err = asn1.Unmarshal(rest, &raw); err != nil {
			return nil, fmt.Errorf("pkcs7: parsing certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			return nil, fmt.Errorf("pkcs7: parsing certificate: %w", err)
		}
		result.Certificates = append(result.Certificates, cert)
	}
	return result, nil
}

// Verify checks every signature of the message against the embedded
// certificates and verifies that the MessageDigest attribute matches the
// content. Verify does not validate the certificates themselves.
func (sd *SignedData) Verify() error {
	if len(sd.signerInfos) == 0 {
		return errors.New("pkcs7: no signers")
	}
	contentDigest := sha256.Sum256(sd.Content)
	for i := range sd.signerInfos {
		si := &sd.signerInfos[i]
		cert := sd.findCertificate(si)
		if cert == nil {
			return errors.New("pkcs7: no certificate for signer")
		}

		attrs := si.AuthenticatedAttributes
		if len(attrs.FullBytes) == 0 {
			return errors.New("pkcs7: signer without signed attributes")
		}
		digest, err := messageDigest(attrs.Bytes)
		if err != nil {
			return err
		}
		if !bytes.Equal(digest, contentDigest[:]) {
			return errors.New("pkcs7: message digest mismatch")
		}

		// The attributes are signed in their SET form, the message
		// carries them with an implicit [0] tag.
		signed := slices.Clone(attrs.FullBytes)
		signed[0] = 0x31
		algo, err := signatureAlgorithm(si.DigestEncryptionAlgorithm.Algorithm)
		if err != nil {
			return err
		}
		if err := cert.CheckSignature(algo, signed, si.EncryptedDigest); err != nil {
			return fmt.Errorf("pkcs7: signature verification: %w", err)
		}
	}
	return nil
}

// findCertificate returns the embedded certificate matching the signer's
// issuer and serial number, or nil.
func (sd *SignedData) findCertificate(si *signerInfo) *x509.Certificate {
	for _, cert := range sd.Certificates {
		if cert.SerialNumber.Cmp(si.IssuerAndSerial.Serial) == 0 &&
			bytes.Equal(cert.RawIssuer, si.IssuerAndSerial.Issuer.FullBytes) {
			return cert
		}
	}
	return nil
}

// messageDigest extracts the MessageDigest attribute from the concatenated
// attribute encodings.
func messageDigest(attrs []byte) ([]byte, error) {
	rest := attrs
	for len(rest) > 0 {
		var attr attribute
		var err error
		if rest, err = asn1.Unmarshal(rest, &attr); err != nil {
			return nil, fmt.Errorf("pkcs7: parsing attribute: %w", err)
		}
		if !attr.Type.Equal(oidMessageDigest) {
			continue
		}
		var digest []byte
		if _, err := asn1.Unmarshal(attr.Values.Bytes, &digest); err != nil {
			return nil, fmt.Errorf("pkcs7: parsing message digest: %w", err)
		}
		return digest, nil
	}
	return nil, errors.New("pkcs7: no message digest attribute")
}

// signatureAlgorithm maps a signature algorithm identifier to the
// corresponding x509 constant.
func signatureAlgorithm(algo asn1.ObjectIdentifier) (x509.SignatureAlgorithm, error) {
	switch {
	case algo.Equal(oidECDSASHA256):
		return x509.ECDSAWithSHA256, nil
	case algo.Equal(oidRSASHA256):
		return x509.SHA256WithRSA, nil
	default:
		return 0, errors.New("pkcs7: unsupported signature algorithm " + algo.String())
	}
}
