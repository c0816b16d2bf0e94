package server_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/emitter"
	"github.com/rezonia/fatoora/internal/ledger"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/server"
	"github.com/rezonia/fatoora/internal/signing"
	"github.com/rezonia/fatoora/internal/submit"
)

const saleJSON = `{
	"key": {"tenant_id": "shop-1", "unit_id": "pos-7"},
	"number": "INV-0001",
	"issued_at": "2026-08-30T10:30:00Z",
	"seller": {
		"legal_name": "Bobs Records",
		"vat_number": "300000000000003",
		"crn": "1010010000",
		"address": {"street": "King Fahd Rd", "city": "Riyadh", "postal_code": "12211"}
	},
	"lines": [
		{"name": "Vinyl record", "quantity": 2, "gross_unit_price": "28.75", "vat_rate": "15"}
	]
}`

// newTestServer wires a full pipeline against a scripted authority
func newTestServer(t *testing.T, authority http.HandlerFunc) (*server.Server, *httptest.Server) {
	t.Helper()

	auth := httptest.NewServer(authority)
	t.Cleanup(auth.Close)

	client := submit.NewClient(auth.URL, submit.WithMaxRetries(0))
	em := emitter.New(ledger.NewMemoryLedger(), signing.NewFakeSigner(), client)

	srv := server.NewServer(&server.Config{Address: ":0"}, em, logger.Nop())
	return srv, auth
}

func acceptingAuthority(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"accepted": true, "reportingStatus": "REPORTED"}`))
}

func doJSON(srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestEmitEndpoint_Accepted(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", saleJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "reported", resp.Badge)
	assert.Equal(t, int64(1), resp.CounterValue)
	assert.Equal(t, ledger.SeedHash, resp.PreviousHash)
	assert.NotEmpty(t, resp.ChainHash)
	assert.NotEmpty(t, resp.QRPayload)
	assert.NotEmpty(t, resp.QRImage)
	assert.NotEmpty(t, resp.XML)
	assert.Equal(t, "REPORTED", resp.AuthorityStatus)
}

func TestEmitEndpoint_Rejected(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"accepted": false, "message": "VAT mismatch"}`))
	})

	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", saleJSON)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "rejected", resp.Badge)
	assert.Equal(t, "VAT mismatch", resp.Reason)
	assert.Empty(t, resp.ChainHash)
}

func TestEmitEndpoint_AuthorityDown(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", saleJSON)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "error", resp.Badge)
	assert.True(t, resp.Retryable)
}

func TestEmitEndpoint_InvalidSale(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	// well-formed request, but the sale has no lines: a caller data
	// problem, not an upstream failure
	saleWithoutLines := `{
		"key": {"tenant_id": "shop-1", "unit_id": "pos-7"},
		"number": "INV-0001",
		"issued_at": "2026-08-30T10:30:00Z",
		"seller": {"legal_name": "Bobs Records", "vat_number": "300000000000003"},
		"lines": []
	}`
	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", saleWithoutLines)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "drafting", resp.Stage)
	assert.False(t, resp.Retryable)
}

func TestEmitEndpoint_BadBody(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices/preview", saleJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "draft", resp.Status)
	assert.Equal(t, "not-yet-submitted", resp.Badge)
	assert.NotEmpty(t, resp.UUID)
	assert.NotEmpty(t, resp.XML)
}

func TestQREndpoints_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	encodeBody := `{
		"seller_name": "Bobs Records",
		"vat_number": "300000000000003",
		"timestamp": "2026-08-30T10:30:00Z",
		"gross_total": "57.50",
		"tax_total": "7.50"
	}`
	rec := doJSON(srv, http.MethodPost, "/api/v1/qr", encodeBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var encoded server.QRResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &encoded))
	require.NotEmpty(t, encoded.Payload)
	assert.NotEmpty(t, encoded.Image)

	decodeBody, err := json.Marshal(map[string]string{"payload": encoded.Payload})
	require.NoError(t, err)
	rec = doJSON(srv, http.MethodPost, "/api/v1/qr/decode", string(decodeBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded struct {
		Fields []server.QRFieldOutput `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Fields, 5)
	assert.Equal(t, byte(1), decoded.Fields[0].Tag)
	assert.Equal(t, "Bobs Records", decoded.Fields[0].Value)
	assert.Equal(t, "57.50", decoded.Fields[3].Value)
}

func TestQRDecodeEndpoint_BadPayload(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodPost, "/api/v1/qr/decode", `{"payload": "!!!not-base64!!!"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	// an emitted document passes the gate
	rec := doJSON(srv, http.MethodPost, "/api/v1/invoices", saleJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	var emitted server.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &emitted))

	xml := decodeBase64(t, emitted.XML)
	rec = doJSON(srv, http.MethodPost, "/api/v1/validate", xml)
	require.Equal(t, http.StatusOK, rec.Code)

	var result server.ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Valid)
}

func TestValidateEndpoint_Invalid(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	rec := doJSON(srv, http.MethodPost, "/api/v1/validate", "<Invoice></Invoice>")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result server.ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.MissingElement)
}

func TestSequenceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, acceptingAuthority)

	// fresh key sits at the seed
	rec := doJSON(srv, http.MethodGet, "/api/v1/sequences/shop-1/pos-7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state server.SequenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, int64(0), state.Counter)
	assert.Equal(t, ledger.SeedHash, state.ChainHash)

	// one accepted emission advances it
	rec = doJSON(srv, http.MethodPost, "/api/v1/invoices", saleJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/api/v1/sequences/shop-1/pos-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, int64(1), state.Counter)
	assert.NotEqual(t, ledger.SeedHash, state.ChainHash)
}

func decodeBase64(t *testing.T, s string) string {
	t.Helper()
	out, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return string(out)
}
