// Package emitter coordinates the emission pipeline. It is the only
// writer of the sequence ledger: a lease is opened while drafting and
// committed only when the authority accepts, so every other outcome
// leaves the chain untouched and a retry reuses the same counter value.
package emitter

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/hash"
	"github.com/rezonia/fatoora/internal/ledger"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/qr"
	"github.com/rezonia/fatoora/internal/signing"
	"github.com/rezonia/fatoora/internal/submit"
)

// Input is one sale handed over by the order subsystem
type Input struct {
	Key      model.SequenceKey   `json:"key"`
	Number   string              `json:"number"`
	IssuedAt time.Time           `json:"issued_at"`
	Currency string              `json:"currency"`
	Type     model.DocumentType  `json:"type"`
	Seller   model.Seller        `json:"seller"`
	Lines    []model.InvoiceLine `json:"lines"`

	// UUID is assigned on first emission; a manual retry passes the
	// original value back so the replayed invoice is byte-identical
	UUID string `json:"uuid,omitempty"`
}

// Submitter is the authority client surface the emitter depends on
type Submitter interface {
	Submit(ctx context.Context, docType model.DocumentType, req *submit.Request) (*submit.Outcome, error)
}

// Emitter runs the pipeline
type Emitter struct {
	ledger  ledger.Ledger
	builder *document.Builder
	signer  signing.Signer
	client  Submitter
	log     *logger.Logger
	now     func() time.Time
}

// Option configures an Emitter
type Option func(*Emitter)

// WithLogger sets the emitter logger
func WithLogger(log *logger.Logger) Option {
	return func(e *Emitter) {
		e.log = log
	}
}

// WithClock overrides the issue-timestamp clock
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// New creates an emitter
func New(led ledger.Ledger, signer signing.Signer, client Submitter, opts ...Option) *Emitter {
	e := &Emitter{
		ledger:  led,
		builder: document.NewBuilder(),
		signer:  signer,
		client:  client,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit runs the full pipeline for one sale and returns a definitive
// outcome. Stages run strictly in order; any failure is tagged with
// the stage it occurred in.
func (e *Emitter) Emit(ctx context.Context, input *Input) *Result {
	lease, err := e.ledger.Begin(ctx, input.Key)
	if err != nil {
		return failed(StageDrafting, nil, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = lease.Rollback(ctx)
		}
	}()

	// Drafting
	inv, draft, err := e.draft(input, lease)
	if err != nil {
		return failed(StageDrafting, inv, err)
	}

	// Signing
	signed, err := e.signer.Sign(ctx, draft)
	if err != nil {
		return failed(StageSigning, inv, err)
	}
	inv.Signed = true

	// Hashing: the submitted invoice hash digests the signed document
	xmlDigest := hash.Bytes(signed.SignedXML)

	// QR encoding and injection
	payload, finalXML, err := e.encodeQR(inv, signed, xmlDigest)
	if err != nil {
		return failed(StageQREncoding, inv, err)
	}
	inv.QRPayload = payload

	// Validation gate: no network call past a structural failure
	if err := document.Validate(finalXML); err != nil {
		return failed(StageValidating, inv, err)
	}

	// Submission
	req := &submit.Request{
		UUID:                inv.UUID,
		InvoiceHash:         xmlDigest,
		Invoice:             base64.StdEncoding.EncodeToString(finalXML),
		PreviousInvoiceHash: inv.PreviousHash,
		InvoiceCounterValue: inv.CounterValue,
	}
	outcome, err := e.client.Submit(ctx, inv.Type, req)
	if err != nil {
		var rejection *model.RejectionError
		if errors.As(err, &rejection) {
			e.log.Warnw("invoice rejected by authority",
				"uuid", inv.UUID, "key", input.Key.String(), "reason", rejection.Reason)
			return rejected(inv, finalXML, rejection)
		}
		return failed(StageSubmitting, inv, err)
	}

	// Acceptance is the only transition that advances the chain. The
	// recorded hash digests the final signed, QR-injected bytes.
	chainHash := hash.Bytes(finalXML)
	if err := lease.Commit(ctx, chainHash); err != nil {
		var conflict *model.SequenceConflictError
		if errors.As(err, &conflict) {
			e.log.Errorw("sequence conflict on commit, chain integrity at risk",
				"key", input.Key.String(), "counter", inv.CounterValue, "error", err)
		}
		return failed(StageSubmitting, inv, err)
	}
	committed = true

	e.log.Infow("invoice emitted",
		"uuid", inv.UUID, "key", input.Key.String(),
		"counter", inv.CounterValue, "status", outcome.Status)
	return accepted(inv, finalXML, chainHash, outcome)
}

// Preview drafts and prices an invoice without leasing a counter,
// signing or submitting. Chain metadata is left at its zero values.
func (e *Emitter) Preview(input *Input) (*model.SimplifiedInvoice, []byte, error) {
	inv, err := e.assemble(input, 0, ledger.SeedHash)
	if err != nil {
		return nil, nil, err
	}
	draft, err := e.builder.Build(inv)
	if err != nil {
		return inv, nil, err
	}
	return inv, draft, nil
}

// ChainState reports the committed ledger state for a key
func (e *Emitter) ChainState(ctx context.Context, key model.SequenceKey) (model.SequenceState, error) {
	return e.ledger.State(ctx, key)
}

func (e *Emitter) draft(input *Input, lease ledger.Lease) (*model.SimplifiedInvoice, []byte, error) {
	inv, err := e.assemble(input, lease.Counter(), lease.PreviousHash())
	if err != nil {
		return inv, nil, err
	}
	draft, err := e.builder.Build(inv)
	if err != nil {
		return inv, nil, err
	}
	return inv, draft, nil
}

func (e *Emitter) assemble(input *Input, counter int64, previousHash string) (*model.SimplifiedInvoice, error) {
	id := input.UUID
	if id == "" {
		id = uuid.NewString()
	}
	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = e.now()
	}
	currency := input.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}
	docType := input.Type
	if docType == "" {
		docType = model.DocumentTypeSimplified
	}

	inv := &model.SimplifiedInvoice{
		UUID:         id,
		Number:       input.Number,
		IssuedAt:     issuedAt,
		Currency:     currency,
		Type:         docType,
		Seller:       input.Seller,
		Lines:        input.Lines,
		Summary:      model.Summarize(input.Lines),
		CounterValue: counter,
		PreviousHash: previousHash,
	}
	if err := inv.Validate(); err != nil {
		return inv, err
	}
	return inv, nil
}

func (e *Emitter) encodeQR(inv *model.SimplifiedInvoice, signed *signing.Result, xmlDigest string) (string, []byte, error) {
	fields := qr.InvoiceFields(inv, xmlDigest, signed.SignatureDigest)
	payload, err := qr.Encode(fields)
	if err != nil {
		return "", nil, err
	}
	finalXML, err := document.InjectQR(signed.SignedXML, payload)
	if err != nil {
		return "", nil, err
	}
	return payload, finalXML, nil
}
