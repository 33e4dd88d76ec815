// Package api contains the response payloads returned to callers.
package api

// GenerateResponse is the body of a successful certificate generation.
type GenerateResponse struct {
	Success           bool   `json:"success"`
	CertificateURL    string `json:"certificate_url"`
	CertificateNumber string `json:"certificate_number"`
	Message           string `json:"message"`
	Note              string `json:"note,omitempty"`
}

// ErrorResponse is the body of every rejected or failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Caller-facing error messages.
const (
	MsgInvalidJSON    = "invalid json"
	MsgInternalError  = "Internal server error occurred while generating certificate"
	NoteHTMLOnlyBuild = "This is an HTML version - PDF generation requires CERTIFICATE_FORMAT=pdf"
)
