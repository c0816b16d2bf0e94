// Package document builds the canonical invoice XML, patches the QR
// payload into signed text and runs the pre-submission structure gate.
package document

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	dec "github.com/rezonia/fatoora/internal/decimal"
	"github.com/rezonia/fatoora/internal/model"
)

// UBL namespaces
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// Compliance profile constants
const (
	CustomizationID = "urn:sa:einvoicing:v1"
	ProfileID       = "reporting:1.0"
)

// Additional document reference names for the chain metadata blocks
const (
	RefCounter      = "ICV"
	RefPreviousHash = "PIH"
	RefQR           = "QR"
)

// QRPlaceholder is the token emitted in the QR block on the first pass.
// It is replaced byte-for-byte once the payload exists; re-serializing
// the signed document would invalidate the signature.
const QRPlaceholder = "FATOORA-QR-PLACEHOLDER"

// Builder produces the canonical invoice document. It is a pure
// transformation: the same invoice always yields the same bytes.
type Builder struct{}

// NewBuilder creates a document builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build validates the invoice and serializes it as canonical XML with
// the QR block holding the placeholder token
func (b *Builder) Build(inv *model.SimplifiedInvoice) ([]byte, error) {
	doc, err := b.BuildDocument(inv)
	if err != nil {
		return nil, err
	}
	return Serialize(doc)
}

// BuildDocument constructs the etree document for an invoice
func (b *Builder) BuildDocument(inv *model.SimplifiedInvoice) (*etree.Document, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NamespaceInvoice)
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)

	currency := inv.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}

	addText(root, "cbc:CustomizationID", CustomizationID)
	addText(root, "cbc:ProfileID", ProfileID)
	addText(root, "cbc:ID", inv.Number)
	addText(root, "cbc:UUID", inv.UUID)
	addText(root, "cbc:IssueDate", inv.IssuedAt.Format("2006-01-02"))
	addText(root, "cbc:IssueTime", inv.IssuedAt.Format("15:04:05"))
	typeCode := addText(root, "cbc:InvoiceTypeCode", model.TypeCodeInvoice)
	typeCode.CreateAttr("name", inv.Type.Subtype())
	addText(root, "cbc:DocumentCurrencyCode", currency)
	addText(root, "cbc:TaxCurrencyCode", currency)

	b.addCounterReference(root, inv.CounterValue)
	b.addAttachmentReference(root, RefPreviousHash, inv.PreviousHash)
	b.addAttachmentReference(root, RefQR, QRPlaceholder)

	b.addSupplier(root, inv.Seller)

	taxTotal := root.CreateElement("cac:TaxTotal")
	addAmount(taxTotal, "cbc:TaxAmount", inv.Summary.TaxAmount, currency)

	totals := root.CreateElement("cac:LegalMonetaryTotal")
	addAmount(totals, "cbc:LineExtensionAmount", inv.Summary.Subtotal, currency)
	addAmount(totals, "cbc:TaxExclusiveAmount", inv.Summary.Subtotal, currency)
	addAmount(totals, "cbc:TaxInclusiveAmount", inv.Summary.TaxInclusiveAmount, currency)
	addAmount(totals, "cbc:PayableAmount", inv.Summary.TaxInclusiveAmount, currency)

	for i, line := range inv.Lines {
		b.addLine(root, i+1, line, currency)
	}

	return doc, nil
}

// Serialize renders a document with canonical writer settings so the
// output bytes are stable across builds
func Serialize(doc *etree.Document) ([]byte, error) {
	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, model.NewBuildError("document", "failed to serialize invoice", err)
	}
	return out, nil
}

func (b *Builder) addCounterReference(root *etree.Element, counter int64) {
	ref := root.CreateElement("cac:AdditionalDocumentReference")
	addText(ref, "cbc:ID", RefCounter)
	addText(ref, "cbc:UUID", strconv.FormatInt(counter, 10))
}

func (b *Builder) addAttachmentReference(root *etree.Element, name, value string) {
	ref := root.CreateElement("cac:AdditionalDocumentReference")
	addText(ref, "cbc:ID", name)
	attachment := ref.CreateElement("cac:Attachment")
	obj := addText(attachment, "cbc:EmbeddedDocumentBinaryObject", value)
	obj.CreateAttr("mimeCode", "text/plain")
}

func (b *Builder) addSupplier(root *etree.Element, seller model.Seller) {
	supplier := root.CreateElement("cac:AccountingSupplierParty")
	party := supplier.CreateElement("cac:Party")

	if seller.CRN != "" {
		ident := party.CreateElement("cac:PartyIdentification")
		id := addText(ident, "cbc:ID", seller.CRN)
		id.CreateAttr("schemeID", "CRN")
	}

	country := seller.CountryCode
	if country == "" {
		country = model.DefaultCountryCode
	}
	addr := party.CreateElement("cac:PostalAddress")
	addText(addr, "cbc:StreetName", seller.Address.Street)
	if seller.Address.BuildingNumber != "" {
		addText(addr, "cbc:BuildingNumber", seller.Address.BuildingNumber)
	}
	if seller.Address.District != "" {
		addText(addr, "cbc:CitySubdivisionName", seller.Address.District)
	}
	addText(addr, "cbc:CityName", seller.Address.City)
	if seller.Address.PostalCode != "" {
		addText(addr, "cbc:PostalZone", seller.Address.PostalCode)
	}
	addText(addr.CreateElement("cac:Country"), "cbc:IdentificationCode", country)

	taxScheme := party.CreateElement("cac:PartyTaxScheme")
	addText(taxScheme, "cbc:CompanyID", seller.VATNumber)
	addText(taxScheme.CreateElement("cac:TaxScheme"), "cbc:ID", model.TaxSchemeVAT)

	legal := party.CreateElement("cac:PartyLegalEntity")
	addText(legal, "cbc:RegistrationName", seller.LegalName)
}

func (b *Builder) addLine(root *etree.Element, number int, line model.InvoiceLine, currency string) {
	el := root.CreateElement("cac:InvoiceLine")
	addText(el, "cbc:ID", strconv.Itoa(number))
	qty := addText(el, "cbc:InvoicedQuantity", strconv.FormatInt(line.Quantity, 10))
	qty.CreateAttr("unitCode", "PCE")
	addAmount(el, "cbc:LineExtensionAmount", line.ExclusiveAmount(), currency)

	taxTotal := el.CreateElement("cac:TaxTotal")
	addAmount(taxTotal, "cbc:TaxAmount", line.TaxAmount(), currency)
	addAmount(taxTotal, "cbc:RoundingAmount", line.GrossAmount(), currency)

	item := el.CreateElement("cac:Item")
	addText(item, "cbc:Name", line.Name)
	category := item.CreateElement("cac:ClassifiedTaxCategory")
	addText(category, "cbc:ID", model.TaxCategoryStandard)
	addText(category, "cbc:Percent", dec.Format2(line.VATRate))
	addText(category.CreateElement("cac:TaxScheme"), "cbc:ID", model.TaxSchemeVAT)

	price := el.CreateElement("cac:Price")
	addAmount(price, "cbc:PriceAmount", dec.NetFromGross(line.GrossUnitPrice, line.VATRate), currency)
}

func addText(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

func addAmount(parent *etree.Element, tag string, amount decimal.Decimal, currency string) *etree.Element {
	el := addText(parent, tag, dec.Format2(amount))
	el.CreateAttr("currencyID", currency)
	return el
}
