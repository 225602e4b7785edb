package domain

// DefaultAtRiskThreshold is the fraction of the target below which a KPI
// drops from At Risk to Off Track.
const DefaultAtRiskThreshold = 0.7

// DeriveKpiStatus computes the health indicator from the actual and target
// values. A zero target makes the ratio degenerate, so any non-negative
// actual counts as On Track.
func DeriveKpiStatus(actual, target, atRiskThreshold float64) KpiStatus {
	if target == 0 {
		if actual >= 0 {
			return KpiStatusOnTrack
		}
		return KpiStatusOffTrack
	}
	switch {
	case actual >= target:
		return KpiStatusOnTrack
	case actual >= target*atRiskThreshold:
		return KpiStatusAtRisk
	default:
		return KpiStatusOffTrack
	}
}
