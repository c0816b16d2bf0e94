package submit

import (
	"strings"

	"github.com/rezonia/fatoora/internal/model"
)

// Environment selects the authority deployment
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Default authority base URLs per environment
const (
	SandboxBaseURL    = "https://gw-fatoora-sandbox.invoicing.gov.sa/einvoicing/developer-portal"
	ProductionBaseURL = "https://gw-fatoora.invoicing.gov.sa/einvoicing/core"
)

// Endpoint paths; clearance expects a synchronous signed response,
// reporting is after-the-fact acceptance
const (
	ClearancePath = "/invoices/clearance/single"
	ReportingPath = "/invoices/reporting/single"
)

// BaseURLFor returns the default base URL for an environment
func BaseURLFor(env Environment) string {
	if env == EnvProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// PathFor selects the endpoint for a document type
func PathFor(t model.DocumentType) string {
	if t == model.DocumentTypeStandard {
		return ClearancePath
	}
	return ReportingPath
}

// Request is the authority submission payload
type Request struct {
	UUID                string `json:"uuid"`
	InvoiceHash         string `json:"invoiceHash"`
	Invoice             string `json:"invoice"`
	PreviousInvoiceHash string `json:"previousInvoiceHash,omitempty"`
	InvoiceCounterValue int64  `json:"invoiceCounterValue,omitempty"`
}

// Outcome is a successful (accepted) submission
type Outcome struct {
	Accepted bool     `json:"accepted"`
	Status   string   `json:"status,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// authorityResponse covers both response dialects: an explicit accepted
// flag and the status-string form
type authorityResponse struct {
	Accepted        *bool    `json:"accepted"`
	Message         string   `json:"message"`
	Warnings        []string `json:"warnings"`
	ReportingStatus string   `json:"reportingStatus"`
	ClearanceStatus string   `json:"clearanceStatus"`
}

func (r *authorityResponse) accepted() bool {
	if r.Accepted != nil {
		return *r.Accepted
	}
	status := r.status()
	return strings.EqualFold(status, "REPORTED") || strings.EqualFold(status, "CLEARED")
}

func (r *authorityResponse) status() string {
	if r.ReportingStatus != "" {
		return r.ReportingStatus
	}
	return r.ClearanceStatus
}

func (r *authorityResponse) reason() string {
	if r.Message != "" {
		return r.Message
	}
	if s := r.status(); s != "" {
		return s
	}
	return "authority rejected the invoice without a message"
}
