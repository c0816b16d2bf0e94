package signing

import (
	"context"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/hash"
	"github.com/rezonia/fatoora/internal/model"
)

// XAdESSigner is the production adapter: it attaches an enveloped
// XML-DSig signature using the key store's certificate. The digest is
// computed over the document without the QR reference block, so the
// later payload patch does not touch signed content.
type XAdESSigner struct {
	keyStore *KeyStore
}

// NewXAdESSigner creates a signer over a loaded key store
func NewXAdESSigner(ks *KeyStore) *XAdESSigner {
	return &XAdESSigner{keyStore: ks}
}

// Sign parses the drafted document, signs it and returns the serialized
// signed document plus the signature digest
func (s *XAdESSigner) Sign(ctx context.Context, xml []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewSigningError("signing aborted", true, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return nil, model.NewSigningError("document is not well-formed XML", false, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewSigningError("document has no root element", false, nil)
	}

	// Sign the view without the QR block; the returned copy carries the
	// enveloped signature as its last child.
	view := document.WithoutQRReference(root)
	signCtx := dsig.NewDefaultSigningContext(s.keyStore)
	signed, err := signCtx.SignEnveloped(view)
	if err != nil {
		return nil, model.NewSigningError("failed to sign document", false, err)
	}

	sigEl := childByTag(signed, "Signature")
	if sigEl == nil {
		return nil, model.NewSigningError("signed document has no Signature element", false, nil)
	}

	// Move the signature onto the full document, QR block included
	signed.RemoveChild(sigEl)
	root.AddChild(sigEl)

	out, err := document.Serialize(doc)
	if err != nil {
		return nil, model.NewSigningError("failed to serialize signed document", false, err)
	}

	digest, err := extractSignatureDigest(sigEl)
	if err != nil {
		return nil, err
	}

	return &Result{SignedXML: out, SignatureDigest: digest}, nil
}

// extractSignatureDigest locates the ds:SignatureValue element and
// digests its text
func extractSignatureDigest(sig *etree.Element) (string, error) {
	sigValue := findByTag(sig, "SignatureValue")
	if sigValue == nil {
		return "", model.NewSigningError("signed document has no SignatureValue", false, nil)
	}
	return hash.Text(sigValue.Text()), nil
}

func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}
