package ingest

import (
	"strings"
	"time"
)

// RetentionPolicy computes how long a recording must be kept. The service
// code table takes priority over the jurisdiction table; the default covers
// everything else.
type RetentionPolicy struct {
	ServiceYears      map[string]int
	JurisdictionYears map[string]int
	DefaultYears      int
}

const defaultRetentionYears = 7

// DefaultRetentionPolicy returns the policy applied when no overrides are
// configured.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{DefaultYears: defaultRetentionYears}
}

// RetainUntil resolves the retention date for a recording starting at from.
func (p RetentionPolicy) RetainUntil(serviceCode, jurisdictionCode string, from time.Time) time.Time {
	years := p.DefaultYears
	if years <= 0 {
		years = defaultRetentionYears
	}
	if override, ok := p.JurisdictionYears[normalizeCode(jurisdictionCode)]; ok && override > 0 {
		years = override
	}
	if override, ok := p.ServiceYears[normalizeCode(serviceCode)]; ok && override > 0 {
		years = override
	}
	return from.UTC().AddDate(years, 0, 0)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
