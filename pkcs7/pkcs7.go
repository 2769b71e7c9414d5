// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pkcs7 builds and verifies PKCS#7 SignedData messages with signed
// attributes. Messages are assembled as dertree node trees, which gives three
// construction paths: a fully buffered DER encoding, a streaming encoding
// where the content is read from an [io.Reader] and the message switches to
// indefinite-length BER, and a hand-driven indefinite encoding built with
// [dertree.StartIndefinite].
package pkcs7

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"codello.dev/dertree"
	"codello.dev/dertree/oid"
)

// chunkSize is the segment size used when streaming content in
// [SignedDataBuilder.SignIndefinite].
const chunkSize = 1024

// SignatureAlgorithm selects the signer's algorithm.
type SignatureAlgorithm int

const (
	// ECDSAWithSHA256 signs with an EC key over SHA-256.
	ECDSAWithSHA256 SignatureAlgorithm = iota
	// SHA256WithRSA signs with an RSA key using PKCS#1 v1.5 over SHA-256.
	SHA256WithRSA
)

// A SignedDataBuilder assembles a SignedData message for a single signer. The
// content is taken from Content, or streamed from ContentReader if that is
// non-nil. A streamed message uses the indefinite-length format whenever the
// content exceeds the encoder's read-ahead; the reader is consumed by the
// signing call, so a builder with a ContentReader is single-use.
type SignedDataBuilder struct {
	Content       []byte
	ContentReader io.Reader

	Certificate *x509.Certificate
	Signer      crypto.Signer
	Algorithm   SignatureAlgorithm

	// SigningTime is recorded as a signed attribute. The zero value means
	// the current time.
	SigningTime time.Time
}

// Sign builds the SignedData message and returns its complete encoding. With
// buffered content the result is pure DER; with a ContentReader larger than
// the encoder's read-ahead the content layers use the indefinite-length
// format and the message digest and signature are computed while streaming.
func (b *SignedDataBuilder) Sign() ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	h := sha256.New()
	var content, digest *dertree.Node
	if b.ContentReader != nil {
		content = dertree.Context(0, dertree.OctetStringReader(io.TeeReader(b.ContentReader, h)))
		digest = dertree.OctetStringFunc(func() ([]byte, error) {
			return h.Sum(nil), nil
		})
	} else {
		h.Write(b.Content)
		content = dertree.Context(0, dertree.OctetString(b.Content))
		digest = dertree.OctetString(h.Sum(nil))
	}

	msg := dertree.Sequence(
		dertree.OID(oid.SignedData),
		dertree.Context(0, dertree.Sequence(
			dertree.Integer(1),
			dertree.Set(digestAlgorithm()),
			dertree.Sequence(dertree.OID(oid.Data), content),
			dertree.Context(0, dertree.Wrap(b.Certificate.Raw)),
			dertree.Set(b.signerInfo(digest)),
		)),
	)
	enc, err := msg.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pkcs7: encoding signed data: %w", err)
	}
	return enc, nil
}

// SignIndefinite writes the SignedData message to w using the
// indefinite-length format on every enclosing layer of the content. The
// content is streamed in segments and digested as it is written. This is the
// hand-driven equivalent of signing with a ContentReader and exists for
// callers that want the whole message streamed rather than just the content
// layers.
func (b *SignedDataBuilder) SignIndefinite(w io.Writer) error {
	if err := b.check(); err != nil {
		return err
	}
	r := b.ContentReader
	if r == nil {
		r = bytes.NewReader(b.Content)
	}
	h := sha256.New()

	msg, err := dertree.StartIndefinite(w, dertree.TagSequence)
	if err != nil {
		return err
	}
	if err := msg.Encode(dertree.OID(oid.SignedData)); err != nil {
		return err
	}
	signed, err := dertree.StartIndefinite(w, dertree.ContextTag(0))
	if err != nil {
		return err
	}
	inner, err := dertree.StartIndefinite(w, dertree.TagSequence)
	if err != nil {
		return err
	}
	if err := inner.Encode(dertree.Integer(1)); err != nil {
		return err
	}
	if err := inner.Encode(dertree.Set(digestAlgorithm())); err != nil {
		return err
	}
	if err := b.streamContent(w, r, h); err != nil {
		return err
	}
	if err := inner.Encode(dertree.Context(0, dertree.Wrap(b.Certificate.Raw))); err != nil {
		return err
	}
	digest := dertree.OctetString(h.Sum(nil))
	if err := inner.Encode(dertree.Set(b.signerInfo(digest))); err != nil {
		return err
	}
	if err := inner.Close(); err != nil {
		return err
	}
	if err := signed.Close(); err != nil {
		return err
	}
	return msg.Close()
}

// streamContent writes the encapContentInfo layers in the indefinite-length
// format, emitting the content as a series of OCTET STRING segments while
// feeding them into h.
func (b *SignedDataBuilder) streamContent(w io.Writer, r io.Reader, h hash.Hash) error {
	info, err := dertree.StartIndefinite(w, dertree.TagSequence)
	if err != nil {
		return err
	}
	if err := info.Encode(dertree.OID(oid.Data)); err != nil {
		return err
	}
	wrapper, err := dertree.StartIndefinite(w, dertree.ContextTag(0))
	if err != nil {
		return err
	}
	octets, err := dertree.StartIndefinite(w, dertree.TagOctetString)
	if err != nil {
		return err
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			h.Write(buf[:n])
			if err := octets.Encode(dertree.OctetString(buf[:n])); err != nil {
				return err
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("pkcs7: reading content: %w", err)
		}
	}
	if err := octets.Close(); err != nil {
		return err
	}
	if err := wrapper.Close(); err != nil {
		return err
	}
	return info.Close()
}

// signerInfo builds the SignerInfo for the single signer. digest is the
// MessageDigest attribute value; it may be a deferred node whose content only
// becomes available once the content has been streamed. The signature itself
// is always deferred, since it covers the signed attributes which include the
// digest.
func (b *SignedDataBuilder) signerInfo(digest *dertree.Node) *dertree.Node {
	attrs := b.signedAttributes(digest)
	signature := dertree.OctetStringFunc(func() ([]byte, error) {
		enc, err := attrs.Bytes()
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(enc)
		return b.Signer.Sign(rand.Reader, sum[:], crypto.SHA256)
	})
	return dertree.Sequence(
		dertree.Integer(1),
		dertree.Sequence(dertree.Wrap(b.Certificate.RawIssuer), dertree.BigInt(b.Certificate.SerialNumber)),
		digestAlgorithm(),
		attrs.Implicit(0),
		b.signatureAlgorithm(),
		signature,
	)
}

// signedAttributes builds the authenticatedAttributes SET. The SET is signed
// in its canonical SET form, while the message embeds it with the implicit
// [0] tag.
func (b *SignedDataBuilder) signedAttributes(digest *dertree.Node) *dertree.Node {
	signingTime := b.SigningTime
	if signingTime.IsZero() {
		signingTime = time.Now()
	}
	return dertree.Set(
		dertree.Sequence(dertree.OID(oid.CMSAlgorithmProtection),
			dertree.Set(dertree.Sequence(
				digestAlgorithm(),
				dertree.Context(1, dertree.OID(b.signatureOID())),
			))),
		dertree.Sequence(dertree.OID(oid.SigningTime), dertree.Set(dertree.Time(signingTime))),
		dertree.Sequence(dertree.OID(oid.ContentType), dertree.Set(dertree.OID(oid.Data))),
		dertree.Sequence(dertree.OID(oid.MessageDigest), dertree.Set(digest)),
	)
}

// signatureOID returns the object identifier of the signature algorithm.
func (b *SignedDataBuilder) signatureOID() dertree.ObjectIdentifier {
	if b.Algorithm == SHA256WithRSA {
		return oid.SHA256WithRSA
	}
	return oid.ECDSAWithSHA256
}

// signatureAlgorithm returns the AlgorithmIdentifier of the signature
// algorithm.
func (b *SignedDataBuilder) signatureAlgorithm() *dertree.Node {
	if b.Algorithm == SHA256WithRSA {
		return dertree.Sequence(dertree.OID(oid.SHA256WithRSA), dertree.Null())
	}
	return dertree.Sequence(dertree.OID(oid.ECDSAWithSHA256))
}

// digestAlgorithm returns the SHA-256 AlgorithmIdentifier.
func digestAlgorithm() *dertree.Node {
	return dertree.Sequence(dertree.OID(oid.SHA256), dertree.Null())
}

// check validates the builder configuration.
func (b *SignedDataBuilder) check() error {
	if b.Certificate == nil {
		return errors.New("pkcs7: no signer certificate")
	}
	if b.Signer == nil {
		return errors.New("pkcs7: no signing key")
	}
	return nil
}
