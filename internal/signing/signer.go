// Package signing is the capability boundary around the invoice
// signature. Certificate and key material never leave this package;
// callers hand in XML bytes and get signed XML back.
package signing

import "context"

// Result is the output of a signing operation
type Result struct {
	// SignedXML is the document with the enveloped signature attached
	SignedXML []byte
	// SignatureDigest is the Base64 SHA-256 of the signature value,
	// embedded in the QR payload
	SignatureDigest string
}

// Signer signs a drafted invoice document. A failure is fatal for the
// current attempt and must never advance the sequence ledger.
type Signer interface {
	Sign(ctx context.Context, xml []byte) (*Result, error)
}
