package emitter

import (
	"errors"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/submit"
)

// Stage names the pipeline steps that can fail, in execution order.
// Transitions are forward-only; there is no backward arrow. Hashing
// sits between signing and QR encoding but cannot fail, so no failure
// is ever tagged with it.
type Stage string

const (
	StageDrafting   Stage = "drafting"
	StageSigning    Stage = "signing"
	StageQREncoding Stage = "qr_encoding"
	StageValidating Stage = "validating"
	StageSubmitting Stage = "submitting"
)

// Status is the terminal pipeline state
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Result is the structured outcome returned to the caller. No raw
// errors cross into presentation code; the failing stage and a typed
// error are attached instead.
type Result struct {
	Status Status `json:"status"`
	// Stage is the failing stage; empty on acceptance
	Stage Stage `json:"stage,omitempty"`

	Invoice *model.SimplifiedInvoice `json:"invoice,omitempty"`
	// XML is the final signed, QR-injected document
	XML []byte `json:"-"`
	// ChainHash is the recorded chain hash; set on acceptance only
	ChainHash string `json:"chain_hash,omitempty"`

	// AuthorityStatus and Warnings come from the authority response
	AuthorityStatus string   `json:"authority_status,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	// Reason is the authority's rejection text, verbatim
	Reason string `json:"reason,omitempty"`

	Err error `json:"-"`
}

// ErrorMessage renders the underlying error for presentation
func (r *Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Retryable reports whether the operator's manual retry action applies:
// the failure was transient and replaying the same draft may succeed.
func (r *Result) Retryable() bool {
	if r.Status != StatusFailed {
		return false
	}
	var netErr *model.NetworkError
	if errors.As(r.Err, &netErr) {
		return netErr.Retryable
	}
	var sigErr *model.SigningError
	if errors.As(r.Err, &sigErr) {
		return sigErr.Transient
	}
	return false
}

func accepted(inv *model.SimplifiedInvoice, xml []byte, chainHash string, outcome *submit.Outcome) *Result {
	return &Result{
		Status:          StatusAccepted,
		Invoice:         inv,
		XML:             xml,
		ChainHash:       chainHash,
		AuthorityStatus: outcome.Status,
		Warnings:        outcome.Warnings,
	}
}

func rejected(inv *model.SimplifiedInvoice, xml []byte, rejection *model.RejectionError) *Result {
	return &Result{
		Status:   StatusRejected,
		Stage:    StageSubmitting,
		Invoice:  inv,
		XML:      xml,
		Reason:   rejection.Reason,
		Warnings: rejection.Warnings,
		Err:      rejection,
	}
}

func failed(stage Stage, inv *model.SimplifiedInvoice, err error) *Result {
	return &Result{
		Status:  StatusFailed,
		Stage:   stage,
		Invoice: inv,
		Err:     err,
	}
}
