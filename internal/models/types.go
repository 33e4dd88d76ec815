// Package models defines the certificate data carried through the generation pipeline.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Request field names, in declaration order. Validation reports missing
// fields in this order.
const (
	FieldRecipientName  = "recipient_name"
	FieldCourseTitle    = "course_title"
	FieldTierLevel      = "tier_level"
	FieldCompletionDate = "completion_date"
	FieldUserID         = "user_id"
	FieldCourseID       = "course_id"
)

// RequiredFields lists every field a CertificateRequest must carry.
var RequiredFields = []string{
	FieldRecipientName,
	FieldCourseTitle,
	FieldTierLevel,
	FieldCompletionDate,
	FieldUserID,
	FieldCourseID,
}

// CertificateRequest is the inbound request after envelope unwrapping.
type CertificateRequest struct {
	RecipientName  string `json:"recipient_name"`
	CourseTitle    string `json:"course_title"`
	TierLevel      any    `json:"tier_level"` // decoded JSON value; unmapped values fall back to DefaultTier
	CompletionDate string `json:"completion_date"`
	UserID         string `json:"user_id"`
	CourseID       string `json:"course_id"`
}

// RequestFromBody copies the required fields out of a decoded body.
// Non-string scalars are rendered with their JSON text.
func RequestFromBody(body map[string]any) CertificateRequest {
	return CertificateRequest{
		RecipientName:  stringOf(body[FieldRecipientName]),
		CourseTitle:    stringOf(body[FieldCourseTitle]),
		TierLevel:      body[FieldTierLevel],
		CompletionDate: stringOf(body[FieldCompletionDate]),
		UserID:         stringOf(body[FieldUserID]),
		CourseID:       stringOf(body[FieldCourseID]),
	}
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// CertificateRecord is a request enriched with the derived presentation fields.
// It only lives for the duration of one render.
type CertificateRecord struct {
	CertificateRequest
	CertificateNumber string
	Tier              Tier
	FormattedDate     string // completion date in long form, e.g. "March 15, 2024"
	CurrentYear       int
}

// NewRecord derives a CertificateRecord. Recipient name and course title are trimmed.
func NewRecord(req CertificateRequest, number string, completed time.Time, now time.Time) CertificateRecord {
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	req.CourseTitle = strings.TrimSpace(req.CourseTitle)
	return CertificateRecord{
		CertificateRequest: req,
		CertificateNumber:  number,
		Tier:               TierFor(req.TierLevel),
		FormattedDate:      completed.Format(LongDateLayout),
		CurrentYear:        now.Year(),
	}
}

// Fields returns the template field mapping for the record.
func (r CertificateRecord) Fields() map[string]any {
	return map[string]any{
		FieldRecipientName:   r.RecipientName,
		FieldCourseTitle:     r.CourseTitle,
		FieldTierLevel:       stringOf(r.TierLevel),
		FieldCompletionDate:  r.CompletionDate,
		FieldUserID:          r.UserID,
		FieldCourseID:        r.CourseID,
		"certificate_number": r.CertificateNumber,
		"tier_name":          r.Tier.Name,
		"accent_color":       r.Tier.AccentColor,
		"formatted_date":     r.FormattedDate,
		"current_year":       r.CurrentYear,
	}
}

// Date layouts for completion_date.
const (
	InputDateLayout = "2006-01-02"
	LongDateLayout  = "January 02, 2006"
)

// Tier is the cosmetic presentation of an achievement level.
type Tier struct {
	Name        string
	AccentColor string
}

var tiers = map[int]Tier{
	1: {Name: "Foundation Program", AccentColor: "#4A90E2"},
	2: {Name: "Mastery Program", AccentColor: "#95A5A6"},
	3: {Name: "Elite Program", AccentColor: "#F39C12"},
}

// DefaultTier is used for any tier level outside the table. Its colour is the tier-1 colour.
var DefaultTier = Tier{Name: "Unknown Program", AccentColor: tiers[1].AccentColor}

// TierFor maps a decoded tier_level to its Tier. The mapping is total.
func TierFor(level any) Tier {
	n, ok := tierNumber(level)
	if !ok {
		return DefaultTier
	}
	if t, ok := tiers[n]; ok {
		return t
	}
	return DefaultTier
}

func tierNumber(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
	}
	return 0, false
}
