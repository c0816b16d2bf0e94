package signing

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/ledger"
	"github.com/rezonia/fatoora/internal/model"
)

const draftXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">` +
	`<ID>INV-0001</ID><UUID>8d487816-70b8-4ade-a618-9d620b73814a</UUID>` +
	`<Note>FATOORA-QR-PLACEHOLDER</Note>` +
	`</Invoice>`

// testKeyPair generates a self-signed certificate for signing tests
func testKeyPair(t *testing.T, notBefore, notAfter time.Time) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Bobs Records",
			Organization: []string{"Bobs Records LLC"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return certPEM, keyPEM
}

func TestNewKeyStore(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))

	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	priv, cert, err := ks.GetKeyPair()
	require.NoError(t, err)
	assert.NotNil(t, priv)
	assert.NotEmpty(t, cert)
	assert.Equal(t, "Bobs Records", ks.Certificate().Subject.CommonName)
}

func TestNewKeyStore_ExpiredCertificate(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))

	_, err := NewKeyStore(certPEM, keyPEM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestNewKeyStore_NotYetValid(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(24*time.Hour), time.Now().Add(48*time.Hour))

	_, err := NewKeyStore(certPEM, keyPEM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet valid")
}

func TestNewKeyStore_BadPEM(t *testing.T) {
	_, err := NewKeyStore([]byte("junk"), []byte("junk"))
	assert.Error(t, err)
}

func TestXAdESSigner_Sign(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	signer := NewXAdESSigner(ks)
	result, err := signer.Sign(context.Background(), []byte(draftXML))
	require.NoError(t, err)

	assert.Contains(t, string(result.SignedXML), "SignatureValue")
	assert.NotEmpty(t, result.SignatureDigest)

	// the placeholder region must survive signing for the later patch
	assert.Contains(t, string(result.SignedXML), "FATOORA-QR-PLACEHOLDER")
}

// buildDraft produces a real invoice document, QR placeholder included
func buildDraft(t *testing.T) []byte {
	t.Helper()

	lines := []model.InvoiceLine{
		{
			Name:           "Vinyl record",
			Quantity:       2,
			GrossUnitPrice: decimal.RequireFromString("28.75"),
			VATRate:        decimal.NewFromInt(15),
		},
	}
	inv := &model.SimplifiedInvoice{
		UUID:     "8d487816-70b8-4ade-a618-9d620b73814a",
		Number:   "INV-0001",
		IssuedAt: time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC),
		Currency: "SAR",
		Type:     model.DocumentTypeSimplified,
		Seller: model.Seller{
			LegalName: "Bobs Records",
			VATNumber: "300000000000003",
			CRN:       "1010010000",
			Address:   model.Address{Street: "King Fahd Rd", City: "Riyadh"},
		},
		Lines:        lines,
		Summary:      model.Summarize(lines),
		CounterValue: 1,
		PreviousHash: ledger.SeedHash,
	}

	draft, err := document.NewBuilder().Build(inv)
	require.NoError(t, err)
	return draft
}

// verifySignature checks the enveloped signature over the reduced view,
// the same reduction the signer digests
func verifySignature(t *testing.T, ks *KeyStore, xmlBytes []byte) error {
	t.Helper()

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	view := document.WithoutQRReference(doc.Root())

	store := &dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{ks.Certificate()},
	}
	_, err := dsig.NewDefaultValidationContext(store).Validate(view)
	return err
}

func TestXAdESSigner_SignatureSurvivesQRInjection(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	signer := NewXAdESSigner(ks)
	result, err := signer.Sign(context.Background(), buildDraft(t))
	require.NoError(t, err)

	require.NoError(t, verifySignature(t, ks, result.SignedXML))

	// the payload patch touches only the excluded QR block, so the
	// signature still verifies on the final document
	finalXML, err := document.InjectQR(result.SignedXML, "UEFZTE9BRA==")
	require.NoError(t, err)
	assert.Contains(t, string(finalXML), "UEFZTE9BRA==")
	require.NoError(t, verifySignature(t, ks, finalXML))
}

func TestXAdESSigner_TamperedContentFailsVerification(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	signer := NewXAdESSigner(ks)
	result, err := signer.Sign(context.Background(), buildDraft(t))
	require.NoError(t, err)

	tampered := bytes.Replace(result.SignedXML,
		[]byte("INV-0001"), []byte("INV-0002"), 1)
	assert.Error(t, verifySignature(t, ks, tampered))
}

func TestXAdESSigner_ContextCanceled(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	signer := NewXAdESSigner(ks)
	_, err = signer.Sign(ctx, buildDraft(t))
	require.Error(t, err)

	// an aborted signing attempt is transient: a retry may succeed
	var sigErr *model.SigningError
	require.ErrorAs(t, err, &sigErr)
	assert.True(t, sigErr.Transient)
}

func TestXAdESSigner_MalformedInput(t *testing.T) {
	certPEM, keyPEM := testKeyPair(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	ks, err := NewKeyStore(certPEM, keyPEM)
	require.NoError(t, err)

	signer := NewXAdESSigner(ks)
	_, err = signer.Sign(context.Background(), []byte("<unclosed"))
	assert.Error(t, err)
}

func TestFakeSigner_Deterministic(t *testing.T) {
	signer := NewFakeSigner()
	ctx := context.Background()

	first, err := signer.Sign(ctx, []byte(draftXML))
	require.NoError(t, err)
	second, err := signer.Sign(ctx, []byte(draftXML))
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.SignedXML, second.SignedXML))
	assert.Equal(t, first.SignatureDigest, second.SignatureDigest)
	assert.Contains(t, string(first.SignedXML), "ds:SignatureValue")
}

func TestFakeSigner_InputSensitive(t *testing.T) {
	signer := NewFakeSigner()
	ctx := context.Background()

	a, err := signer.Sign(ctx, []byte(draftXML))
	require.NoError(t, err)
	b, err := signer.Sign(ctx, []byte(draftXML+" "))
	require.NoError(t, err)

	assert.NotEqual(t, a.SignatureDigest, b.SignatureDigest)
}
