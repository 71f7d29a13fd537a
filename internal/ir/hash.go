package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan = "quarry/plan/v1"
	DomainRows = "quarry/rows/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanHash returns a short, stable identifier for a relational node digest.
func PlanHash(digest string) string {
	return hashWithDomain(DomainPlan, []byte(digest))[:16]
}

// RowsHash computes a content hash over a result set.
// Two executions producing element-wise equal rows hash identically.
func RowsHash(rows []Row) (string, error) {
	canonical, err := MarshalCanonical(rows)
	if err != nil {
		return "", fmt.Errorf("RowsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRows, canonical), nil
}
