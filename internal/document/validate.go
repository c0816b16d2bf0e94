package document

import (
	"github.com/beevik/etree"

	"github.com/rezonia/fatoora/internal/model"
)

// requiredElements is checked in order; the gate fails fast with the
// first missing element's name.
var requiredElements = []string{
	"cbc:CustomizationID",
	"cbc:ProfileID",
	"cbc:ID",
	"cbc:UUID",
	"cbc:InvoiceTypeCode",
	"cac:AdditionalDocumentReference",
}

// Validate checks the final document for the required top-level
// elements before any network call is made
func Validate(xmlBytes []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return model.NewValidationError("Invoice")
	}
	root := doc.Root()
	if root == nil || root.Tag != "Invoice" {
		return model.NewValidationError("Invoice")
	}
	for _, name := range requiredElements {
		if root.FindElement("./"+name) == nil {
			return model.NewValidationError(name)
		}
	}
	return nil
}
