package storage

import (
	"fmt"
	"path"
	"strings"
)

// CertificatePrefix is the key prefix under which every certificate is stored.
const CertificatePrefix = "certificates/"

// Content types and extensions of the rendered artifacts.
const (
	ContentTypeHTML = "text/html"
	ContentTypePDF  = "application/pdf"
	ExtHTML         = "html"
	ExtPDF          = "pdf"
)

// BuildKey constructs the object key for a certificate. Identifiers are used
// as given; callers must supply storage-safe values.
func BuildKey(userID, courseID, certificateNumber, ext string) string {
	return fmt.Sprintf("%s%s/%s/cert-%s.%s", CertificatePrefix, userID, courseID, certificateNumber, ext)
}

// KeyParts are the identifiers recovered from a certificate key.
type KeyParts struct {
	UserID            string `json:"user_id"`
	CourseID          string `json:"course_id"`
	CertificateNumber string `json:"certificate_number"`
	Ext               string `json:"ext"`
}

// ParseKey extracts the identifiers from a key built by BuildKey.
func ParseKey(key string) (KeyParts, bool) {
	if !strings.HasPrefix(key, CertificatePrefix) {
		return KeyParts{}, false
	}
	parts := strings.Split(strings.TrimPrefix(key, CertificatePrefix), "/")
	if len(parts) != 3 {
		return KeyParts{}, false
	}
	name := parts[2]
	ext := strings.TrimPrefix(path.Ext(name), ".")
	base := strings.TrimSuffix(name, path.Ext(name))
	if ext == "" || !strings.HasPrefix(base, "cert-") || len(base) == len("cert-") {
		return KeyParts{}, false
	}
	return KeyParts{
		UserID:            parts[0],
		CourseID:          parts[1],
		CertificateNumber: strings.TrimPrefix(base, "cert-"),
		Ext:               ext,
	}, true
}
