package model

import (
	"time"

	"github.com/shopspring/decimal"

	dec "github.com/rezonia/fatoora/internal/decimal"
)

// DocumentType selects the authority submission path
type DocumentType string

const (
	// DocumentTypeSimplified is a B2C invoice, reported after the fact
	DocumentTypeSimplified DocumentType = "simplified"
	// DocumentTypeStandard is a B2B invoice, cleared before finalization
	DocumentTypeStandard DocumentType = "standard"
)

// Invoice type code and subtype constants (UBL InvoiceTypeCode)
const (
	TypeCodeInvoice     = "388"
	SubtypeSimplified   = "0200000"
	SubtypeStandard     = "0100000"
	DefaultCurrency     = "SAR"
	DefaultCountryCode  = "SA"
	TaxCategoryStandard = "S"
	TaxSchemeVAT        = "VAT"
)

// Subtype returns the UBL subtype attribute for the document type
func (t DocumentType) Subtype() string {
	if t == DocumentTypeStandard {
		return SubtypeStandard
	}
	return SubtypeSimplified
}

// Valid returns true for a known document type
func (t DocumentType) Valid() bool {
	return t == DocumentTypeSimplified || t == DocumentTypeStandard
}

// Address is a structured seller address
type Address struct {
	Street         string `json:"street"`
	BuildingNumber string `json:"building_number,omitempty"`
	District       string `json:"district,omitempty"`
	City           string `json:"city"`
	PostalCode     string `json:"postal_code,omitempty"`
}

// Seller holds the tenant's registered identity. Immutable per tenant,
// supplied by the identity subsystem.
type Seller struct {
	// Registered name in the local script
	LegalName string `json:"legal_name"`
	// Registered name in the foreign script, optional
	LegalNameForeign string `json:"legal_name_foreign,omitempty"`
	// VAT registration number (15 digits)
	VATNumber string `json:"vat_number"`
	// Commercial registration number
	CRN         string  `json:"crn"`
	CountryCode string  `json:"country_code"`
	Address     Address `json:"address"`
	Phone       string  `json:"phone,omitempty"`
}

// InvoiceLine is a single sold item. Unit prices are gross (tax inclusive);
// exclusive amounts are derived, never stored.
type InvoiceLine struct {
	Name        string `json:"name"`
	NameForeign string `json:"name_foreign,omitempty"`
	// Quantity must be a positive integer
	Quantity int64 `json:"quantity"`
	// GrossUnitPrice is the tax-inclusive unit price
	GrossUnitPrice decimal.Decimal `json:"gross_unit_price"`
	// VATRate is a percentage, e.g. 15 for 15%
	VATRate decimal.Decimal `json:"vat_rate"`
}

// GrossAmount returns quantity * gross unit price, rounded to 2 places
func (l InvoiceLine) GrossAmount() decimal.Decimal {
	return l.GrossUnitPrice.Mul(decimal.NewFromInt(l.Quantity)).Round(2)
}

// ExclusiveAmount returns the tax-exclusive line amount
func (l InvoiceLine) ExclusiveAmount() decimal.Decimal {
	return dec.NetFromGross(l.GrossAmount(), l.VATRate)
}

// TaxAmount returns the line VAT amount
func (l InvoiceLine) TaxAmount() decimal.Decimal {
	return dec.TaxFromGross(l.GrossAmount(), l.VATRate)
}

// InvoiceSummary holds the invoice totals, each rounded to 2 places
type InvoiceSummary struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TaxInclusiveAmount decimal.Decimal `json:"tax_inclusive_amount"`
}

// Validate checks the subtotal + tax == total invariant within 0.01
func (s InvoiceSummary) Validate() error {
	if !dec.WithinTolerance(s.Subtotal.Add(s.TaxAmount), s.TaxInclusiveAmount) {
		return NewBuildError("summary",
			"subtotal + tax amount does not equal tax-inclusive total", nil)
	}
	return nil
}

// Summarize computes invoice totals from lines
func Summarize(lines []InvoiceLine) InvoiceSummary {
	subtotal := decimal.Zero
	tax := decimal.Zero
	gross := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.ExclusiveAmount())
		tax = tax.Add(l.TaxAmount())
		gross = gross.Add(l.GrossAmount())
	}
	return InvoiceSummary{
		Subtotal:           subtotal.Round(2),
		TaxAmount:          tax.Round(2),
		TaxInclusiveAmount: gross.Round(2),
	}
}

// SimplifiedInvoice is the drafted invoice flowing through the emission pipeline
type SimplifiedInvoice struct {
	// UUID is globally unique and immutable once assigned
	UUID string `json:"uuid"`
	// Number is the human-readable invoice number
	Number string `json:"number"`
	// IssuedAt must carry an explicit timezone
	IssuedAt time.Time      `json:"issued_at"`
	Currency string         `json:"currency"`
	Type     DocumentType   `json:"type"`
	Seller   Seller         `json:"seller"`
	Lines    []InvoiceLine  `json:"lines"`
	Summary  InvoiceSummary `json:"summary"`

	// Chain metadata, assigned by the orchestrator from the ledger
	CounterValue int64  `json:"counter_value"`
	PreviousHash string `json:"previous_hash"`

	// QRPayload is absent until the signed document has been digested
	QRPayload string `json:"qr_payload,omitempty"`
	// Signed is set once the signing adapter has produced the signed document
	Signed bool `json:"signed"`
}

// Validate checks the drafted invoice before document construction
func (inv *SimplifiedInvoice) Validate() error {
	if inv.UUID == "" {
		return NewBuildError("uuid", "missing invoice uuid", nil)
	}
	if inv.Number == "" {
		return NewBuildError("number", "missing invoice number", nil)
	}
	if inv.IssuedAt.IsZero() {
		return NewBuildError("issued_at", "missing issue timestamp", nil)
	}
	if !inv.Type.Valid() {
		return NewBuildError("type", "unknown document type", nil)
	}
	if inv.Seller.VATNumber == "" {
		return NewBuildError("seller.vat_number", "missing seller VAT number", nil)
	}
	if inv.Seller.LegalName == "" {
		return NewBuildError("seller.legal_name", "missing seller legal name", nil)
	}
	if len(inv.Lines) == 0 {
		return NewBuildError("lines", "invoice has no lines", nil)
	}
	for i, l := range inv.Lines {
		if l.Quantity <= 0 {
			return NewBuildError("lines", "line quantity must be positive", nil).WithLine(i)
		}
		if l.GrossUnitPrice.IsNegative() {
			return NewBuildError("lines", "line unit price must not be negative", nil).WithLine(i)
		}
		if l.Name == "" {
			return NewBuildError("lines", "line item name is required", nil).WithLine(i)
		}
	}
	return inv.Summary.Validate()
}

// SequenceKey identifies one emission unit of one tenant
type SequenceKey struct {
	TenantID string `json:"tenant_id"`
	UnitID   string `json:"unit_id"`
}

func (k SequenceKey) String() string {
	return k.TenantID + "/" + k.UnitID
}

// SequenceState is the persisted chain state for a key
type SequenceState struct {
	Counter   int64  `json:"counter"`
	ChainHash string `json:"chain_hash"`
}
