package models

import (
	"fmt"
	"time"
)

// IntN returns a uniform integer in [0, n). math/rand/v2's IntN satisfies it.
type IntN func(n int) int

// CertificateNumber builds "CERT-<year>-<NNNN>" with NNNN drawn from 1..9999.
// Numbers are not checked against storage; a collision overwrites the earlier object.
func CertificateNumber(now time.Time, intn IntN) string {
	return fmt.Sprintf("CERT-%d-%04d", now.Year(), intn(9999)+1)
}
