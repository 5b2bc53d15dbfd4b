// Package patients implements the patient lookup store consulted during
// identity resolution.
package patients

import (
	"strings"

	"nephro-assistant/pkg"
)

// NormalizeName lower-cases a name and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Match returns the records whose normalized name equals the normalized
// query.  When there is none it falls back to records whose lower-cased
// name contains the normalized query.
func Match(records []pkg.PatientRecord, name string) []pkg.PatientRecord {
	target := NormalizeName(name)
	if target == "" {
		return nil
	}

	var exact []pkg.PatientRecord
	for _, r := range records {
		if NormalizeName(r.PatientName) == target {
			exact = append(exact, r)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var partial []pkg.PatientRecord
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.PatientName), target) {
			partial = append(partial, r)
		}
	}
	return partial
}
