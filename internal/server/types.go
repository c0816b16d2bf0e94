package server

import (
	"github.com/rezonia/fatoora/internal/emitter"
)

// EmitResponse is returned by the emit and preview endpoints
type EmitResponse struct {
	Status          string   `json:"status"`
	Badge           string   `json:"badge,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	UUID            string   `json:"uuid,omitempty"`
	Number          string   `json:"number,omitempty"`
	CounterValue    int64    `json:"counter_value,omitempty"`
	PreviousHash    string   `json:"previous_hash,omitempty"`
	ChainHash       string   `json:"chain_hash,omitempty"`
	QRPayload       string   `json:"qr_payload,omitempty"`
	QRImage         string   `json:"qr_image,omitempty"` // base64 PNG
	XML             string   `json:"xml,omitempty"`      // base64 final document
	AuthorityStatus string   `json:"authority_status,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Retryable       bool     `json:"retryable,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid          bool   `json:"valid"`
	MissingElement string `json:"missing_element,omitempty"`
}

// QREncodeRequest builds a TLV payload from raw fields
type QREncodeRequest struct {
	SellerName string `json:"seller_name" binding:"required"`
	VATNumber  string `json:"vat_number" binding:"required"`
	Timestamp  string `json:"timestamp" binding:"required"`
	GrossTotal string `json:"gross_total" binding:"required"`
	TaxTotal   string `json:"tax_total" binding:"required"`
	ImageSize  int    `json:"image_size,omitempty"`
}

// QRResponse carries an encoded payload and its rendered image
type QRResponse struct {
	Payload string `json:"payload"`
	Image   string `json:"image,omitempty"` // base64 PNG
}

// QRDecodeRequest decodes a Base64 TLV payload
type QRDecodeRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// QRFieldOutput is one decoded tag/value pair
type QRFieldOutput struct {
	Tag   byte   `json:"tag"`
	Value string `json:"value"`
}

// SequenceResponse reports the committed chain state for a key
type SequenceResponse struct {
	TenantID  string `json:"tenant_id"`
	UnitID    string `json:"unit_id"`
	Counter   int64  `json:"counter"`
	ChainHash string `json:"chain_hash"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func emitResponse(result *emitter.Result, qrImage []byte, xmlB64 string) EmitResponse {
	resp := EmitResponse{
		Status:          string(result.Status),
		Badge:           statusBadge(result.Status),
		Stage:           string(result.Stage),
		AuthorityStatus: result.AuthorityStatus,
		Reason:          result.Reason,
		Warnings:        result.Warnings,
		ChainHash:       result.ChainHash,
		Retryable:       result.Retryable(),
		Error:           result.ErrorMessage(),
		XML:             xmlB64,
	}
	if inv := result.Invoice; inv != nil {
		resp.UUID = inv.UUID
		resp.Number = inv.Number
		resp.CounterValue = inv.CounterValue
		resp.PreviousHash = inv.PreviousHash
		resp.QRPayload = inv.QRPayload
	}
	if len(qrImage) > 0 {
		resp.QRImage = encodeBase64(qrImage)
	}
	return resp
}

// statusBadge maps an emission outcome to the operator-facing badge
func statusBadge(status emitter.Status) string {
	switch status {
	case emitter.StatusAccepted:
		return "reported"
	case emitter.StatusRejected:
		return "rejected"
	default:
		return "error"
	}
}
