package document

import (
	"bytes"

	"github.com/beevik/etree"

	"github.com/rezonia/fatoora/internal/model"
)

// InjectQR replaces the placeholder token in an already-signed document
// with the Base64 TLV payload. The patch is byte-level on purpose:
// parsing and re-serializing the document would change bytes and break
// the signature.
func InjectQR(signedXML []byte, payload string) ([]byte, error) {
	placeholder := []byte(QRPlaceholder)
	n := bytes.Count(signedXML, placeholder)
	if n == 0 {
		return nil, model.NewBuildError("qr", "QR placeholder not found in signed document", nil)
	}
	if n > 1 {
		return nil, model.NewBuildError("qr", "QR placeholder appears more than once", nil)
	}
	return bytes.Replace(signedXML, placeholder, []byte(payload), 1), nil
}

// WithoutQRReference returns a detached copy of the invoice root with
// the QR additional document reference removed. The signature digest
// covers this reduced view, which is what keeps the signature valid
// once the payload is patched into the live block; a verifier applies
// the same reduction before checking.
func WithoutQRReference(root *etree.Element) *etree.Element {
	view := root.Copy()
	for _, ref := range view.FindElements("./cac:AdditionalDocumentReference") {
		if id := ref.FindElement("./cbc:ID"); id != nil && id.Text() == RefQR {
			view.RemoveChild(ref)
		}
	}
	return view
}
