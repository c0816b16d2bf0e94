package signing

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"time"

	"github.com/rezonia/fatoora/internal/model"
)

// KeyStore holds the signing certificate and private key. It satisfies
// the goxmldsig X509KeyStore contract and is the only place key
// material lives.
type KeyStore struct {
	privateKey *rsa.PrivateKey
	certDER    []byte
	cert       *x509.Certificate
}

// KeyStoreOption configures a KeyStore
type KeyStoreOption func(*loadOptions)

type loadOptions struct {
	password string
	now      func() time.Time
}

// WithPassword sets the password for an encrypted private key
func WithPassword(password string) KeyStoreOption {
	return func(o *loadOptions) {
		o.password = password
	}
}

// WithClock overrides the validity-window clock
func WithClock(now func() time.Time) KeyStoreOption {
	return func(o *loadOptions) {
		o.now = now
	}
}

// LoadKeyStore reads a PEM certificate and key from the configured
// paths and checks the certificate validity window
func LoadKeyStore(certPath, keyPath string, opts ...KeyStoreOption) (*KeyStore, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, model.NewSigningError("failed to read signing certificate", false, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, model.NewSigningError("failed to read signing key", false, err)
	}
	return NewKeyStore(certPEM, keyPEM, opts...)
}

// NewKeyStore builds a key store from PEM data
func NewKeyStore(certPEM, keyPEM []byte, opts ...KeyStoreOption) (*KeyStore, error) {
	o := &loadOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	keyPEM, err := decryptKeyPEM(keyPEM, o.password)
	if err != nil {
		return nil, err
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, model.NewSigningError("invalid certificate/key pair", false, err)
	}

	rsaKey, ok := pair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, model.NewSigningError("signing key is not an RSA key", false, nil)
	}

	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, model.NewSigningError("failed to parse signing certificate", false, err)
	}

	now := o.now()
	if now.Before(cert.NotBefore) {
		return nil, model.NewSigningError("signing certificate is not yet valid", false, nil)
	}
	if now.After(cert.NotAfter) {
		return nil, model.NewSigningError("signing certificate has expired", false, nil)
	}

	return &KeyStore{
		privateKey: rsaKey,
		certDER:    pair.Certificate[0],
		cert:       cert,
	}, nil
}

// GetKeyPair implements the goxmldsig X509KeyStore interface
func (ks *KeyStore) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	return ks.privateKey, ks.certDER, nil
}

// Certificate returns the parsed signing certificate
func (ks *KeyStore) Certificate() *x509.Certificate {
	return ks.cert
}

func decryptKeyPEM(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, model.NewSigningError("signing key is not PEM encoded", false, nil)
	}
	//nolint:staticcheck // legacy encrypted PEM keys are still issued
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	if password == "" {
		return nil, model.NewSigningError("signing key is encrypted and no password was supplied", false, nil)
	}
	//nolint:staticcheck
	der, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, model.NewSigningError("failed to decrypt signing key", false, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
