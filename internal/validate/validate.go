// Package validate checks certificate requests before any side effect happens.
package validate

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kylejryan/course-certificate-generator/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validation error categories.
var (
	ErrMissingFields = errors.New("missing required fields")
	ErrInvalidDate   = errors.New("completion_date must be in YYYY-MM-DD format")
)

// MissingFieldsError lists every absent or empty required field, in declaration order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// Is matches ErrMissingFields.
func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }

var checker = validator.New()

// RequiredFields reports all of models.RequiredFields that are absent or empty
// in body. Null, "", 0 and false count as empty.
func RequiredFields(body map[string]any) error {
	var missing []string
	for _, f := range models.RequiredFields {
		val, ok := body[f]
		if !ok || checker.Var(normalize(val), "required") != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// normalize turns json.Number into a numeric value so that 0 is empty.
func normalize(val any) any {
	if n, ok := val.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return val
}

// CompletionDate parses a YYYY-MM-DD date.
func CompletionDate(s string) (time.Time, error) {
	t, err := time.Parse(models.InputDateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
