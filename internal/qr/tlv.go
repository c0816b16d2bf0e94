// Package qr implements the TLV QR payload: each field is a 1-byte tag,
// a 1-byte length and the raw value bytes, concatenated in caller order
// and Base64-encoded.
package qr

import (
	"encoding/base64"
	"time"

	"github.com/rezonia/fatoora/internal/decimal"
	"github.com/rezonia/fatoora/internal/model"
)

// Standard tags
const (
	TagSellerName      byte = 1
	TagVATNumber       byte = 2
	TagTimestamp       byte = 3
	TagGrossTotal      byte = 4
	TagTaxTotal        byte = 5
	TagXMLDigest       byte = 6
	TagSignatureDigest byte = 7
)

// MaxValueLength is the hard wire-format limit for a single value.
// Longer values are a fatal encoding error, not something to truncate.
const MaxValueLength = 255

// Field is one tag/value pair
type Field struct {
	Tag   byte
	Value []byte
}

// String creates a UTF-8 text field
func String(tag byte, value string) Field {
	return Field{Tag: tag, Value: []byte(value)}
}

// Bytes creates a field with pre-encoded bytes
func Bytes(tag byte, value []byte) Field {
	return Field{Tag: tag, Value: value}
}

// Encode concatenates the fields as TLV triples in the given order and
// returns the Base64 encoding of the buffer
func Encode(fields []Field) (string, error) {
	buf := make([]byte, 0, 256)
	for _, f := range fields {
		if len(f.Value) > MaxValueLength {
			return "", model.NewEncodingError(f.Tag, "value exceeds 255 bytes")
		}
		buf = append(buf, f.Tag, byte(len(f.Value)))
		buf = append(buf, f.Value...)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decode reverses Encode: it walks the TLV stream and reproduces the
// exact tag/value pairs
func Decode(payload string) ([]Field, error) {
	buf, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, model.NewEncodingError(0, "payload is not valid base64")
	}
	var fields []Field
	for i := 0; i < len(buf); {
		if i+2 > len(buf) {
			return nil, model.NewEncodingError(buf[i], "truncated TLV header")
		}
		tag, length := buf[i], int(buf[i+1])
		i += 2
		if i+length > len(buf) {
			return nil, model.NewEncodingError(tag, "value extends past end of buffer")
		}
		value := make([]byte, length)
		copy(value, buf[i:i+length])
		fields = append(fields, Field{Tag: tag, Value: value})
		i += length
	}
	return fields, nil
}

// InvoiceFields builds the standard field list for an invoice. The digest
// fields are appended only once signing has produced them.
func InvoiceFields(inv *model.SimplifiedInvoice, xmlDigest, signatureDigest string) []Field {
	fields := []Field{
		String(TagSellerName, inv.Seller.LegalName),
		String(TagVATNumber, inv.Seller.VATNumber),
		String(TagTimestamp, inv.IssuedAt.Format(time.RFC3339)),
		String(TagGrossTotal, decimal.Format2(inv.Summary.TaxInclusiveAmount)),
		String(TagTaxTotal, decimal.Format2(inv.Summary.TaxAmount)),
	}
	if xmlDigest != "" {
		fields = append(fields, String(TagXMLDigest, xmlDigest))
	}
	if signatureDigest != "" {
		fields = append(fields, String(TagSignatureDigest, signatureDigest))
	}
	return fields
}
