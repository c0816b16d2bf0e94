package signing

import (
	"context"

	"github.com/beevik/etree"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/hash"
	"github.com/rezonia/fatoora/internal/model"
)

// FakeSigner is the deterministic test adapter: the signature value is
// the digest of the input bytes, so the same draft always produces the
// same signed document. It must never be wired into a production path.
type FakeSigner struct{}

// NewFakeSigner creates the test signer
func NewFakeSigner() *FakeSigner {
	return &FakeSigner{}
}

// Sign appends a deterministic signature element to the document
func (s *FakeSigner) Sign(ctx context.Context, xml []byte) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return nil, model.NewSigningError("document is not well-formed XML", false, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewSigningError("document has no root element", false, nil)
	}

	sigValue := hash.Bytes(xml)

	sig := root.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", "http://www.w3.org/2000/09/xmldsig#")
	value := sig.CreateElement("ds:SignatureValue")
	value.SetText(sigValue)

	out, err := document.Serialize(doc)
	if err != nil {
		return nil, model.NewSigningError("failed to serialize signed document", false, err)
	}

	return &Result{SignedXML: out, SignatureDigest: hash.Text(sigValue)}, nil
}
