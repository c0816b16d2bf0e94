// Package hash computes the invoice digests used in the QR payload and
// hash chain: SHA-256 over the exact input bytes, Base64-encoded. Any
// byte difference in the document yields a different digest, which is
// why documents are hashed only after signing, never re-serialized.
package hash

import (
	"crypto/sha256"
	"encoding/base64"
)

// Bytes digests raw bytes
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Text digests the UTF-8 encoding of a string
func Text(s string) string {
	return Bytes([]byte(s))
}
