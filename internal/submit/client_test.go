package submit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/submit"
)

func testRequest() *submit.Request {
	return &submit.Request{
		UUID:                "8d487816-70b8-4ade-a618-9d620b73814a",
		InvoiceHash:         "xml-digest",
		Invoice:             "PEludm9pY2UvPg==",
		PreviousInvoiceHash: "prev-hash",
		InvoiceCounterValue: 4,
	}
}

func TestSubmit_Accepted(t *testing.T) {
	var gotBody submit.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, submit.ReportingPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "V2", r.Header.Get("Accept-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted": true, "reportingStatus": "REPORTED"}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL)
	outcome, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.Equal(t, "REPORTED", outcome.Status)
	assert.Equal(t, "8d487816-70b8-4ade-a618-9d620b73814a", gotBody.UUID)
	assert.Equal(t, int64(4), gotBody.InvoiceCounterValue)
	assert.Equal(t, "prev-hash", gotBody.PreviousInvoiceHash)
}

func TestSubmit_ClearanceEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, submit.ClearancePath, r.URL.Path)
		assert.Equal(t, "1", r.Header.Get("Clearance-Status"))
		_, _ = w.Write([]byte(`{"clearanceStatus": "CLEARED"}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL)
	outcome, err := client.Submit(context.Background(), model.DocumentTypeStandard, testRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, "CLEARED", outcome.Status)
}

func TestSubmit_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "device-token", user)
		assert.Equal(t, "device-secret", secret)
		_, _ = w.Write([]byte(`{"accepted": true}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, submit.WithBasicAuth("device-token", "device-secret"))
	_, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.NoError(t, err)
}

func TestSubmit_Rejected(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		_, _ = w.Write([]byte(`{"accepted": false, "message": "VAT mismatch", "warnings": ["W-001"]}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL)
	_, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.Error(t, err)

	var rejection *model.RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "VAT mismatch", rejection.Reason)
	assert.Equal(t, []string{"W-001"}, rejection.Warnings)

	// business rejections are terminal, never retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSubmit_BadRequestNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "malformed payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL)
	_, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.Error(t, err)

	var netErr *model.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadRequest, netErr.StatusCode)
	assert.False(t, netErr.Retryable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSubmit_ServerErrorRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"accepted": true}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, submit.WithInitialInterval(time.Millisecond))
	outcome, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSubmit_RetriesExhausted(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL,
		submit.WithMaxRetries(2), submit.WithInitialInterval(time.Millisecond))
	_, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.Error(t, err)

	var netErr *model.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Retryable)
	// initial attempt plus two retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSubmit_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := submit.NewClient(srv.URL,
		submit.WithMaxRetries(1), submit.WithInitialInterval(time.Millisecond))
	_, err := client.Submit(context.Background(), model.DocumentTypeSimplified, testRequest())
	require.Error(t, err)

	var netErr *model.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Retryable)
	assert.Equal(t, 0, netErr.StatusCode)
}
