// Package fatooralib provides a public API for emitting compliant
// simplified tax invoices.
//
// This package exposes the core types for drafting an invoice, running
// the emission pipeline and inspecting its artifacts (QR payload,
// signed XML, chain state).
//
// Example usage:
//
//	em := emitter.New(ledger.NewMemoryLedger(), signer, client)
//	result := em.Emit(ctx, &fatooralib.Input{...})
//	fmt.Println(result.Status, result.ChainHash)
package fatooralib

import (
	"github.com/rezonia/fatoora/internal/emitter"
	"github.com/rezonia/fatoora/internal/ledger"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/qr"
	"github.com/rezonia/fatoora/internal/signing"
	"github.com/rezonia/fatoora/internal/submit"
)

// Re-export core types for public API
type (
	Seller            = model.Seller
	Address           = model.Address
	InvoiceLine       = model.InvoiceLine
	InvoiceSummary    = model.InvoiceSummary
	SimplifiedInvoice = model.SimplifiedInvoice
	SequenceKey       = model.SequenceKey
	SequenceState     = model.SequenceState
	DocumentType      = model.DocumentType

	Input  = emitter.Input
	Result = emitter.Result
	Status = emitter.Status
	Stage  = emitter.Stage

	QRField = qr.Field
	Signer  = signing.Signer
	Ledger  = ledger.Ledger
)

// Re-export document types
const (
	DocumentTypeSimplified = model.DocumentTypeSimplified
	DocumentTypeStandard   = model.DocumentTypeStandard
)

// Re-export pipeline outcomes
const (
	StatusAccepted = emitter.StatusAccepted
	StatusRejected = emitter.StatusRejected
	StatusFailed   = emitter.StatusFailed
)

// Re-export submission environments
const (
	EnvSandbox    = submit.EnvSandbox
	EnvProduction = submit.EnvProduction
)

// SeedHash is the chain seed for a key with no accepted invoices
const SeedHash = ledger.SeedHash

// Re-export error types
type (
	EncodingError         = model.EncodingError
	BuildError            = model.BuildError
	SigningError          = model.SigningError
	ValidationError       = model.ValidationError
	RejectionError        = model.RejectionError
	NetworkError          = model.NetworkError
	SequenceConflictError = model.SequenceConflictError
)

// EncodeQR builds a Base64 TLV payload from ordered fields
func EncodeQR(fields []QRField) (string, error) {
	return qr.Encode(fields)
}

// DecodeQR walks a Base64 TLV payload back into its fields
func DecodeQR(payload string) ([]QRField, error) {
	return qr.Decode(payload)
}
