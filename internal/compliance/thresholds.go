package compliance

// The report completion tiers and the heatmap bands are separate policies
// with different cut points. Keep them apart.

// CompletionTier grades a report completion percentage.
type CompletionTier string

const (
	TierAlert   CompletionTier = "alert"
	TierWarning CompletionTier = "warning"
	TierHealthy CompletionTier = "healthy"
)

const (
	completionWarningFrom = 50
	completionHealthyFrom = 80
)

// CompletionTierOf maps <50 to alert, 50-79 to warning and >=80 to healthy.
func CompletionTierOf(percent int) CompletionTier {
	switch {
	case percent >= completionHealthyFrom:
		return TierHealthy
	case percent >= completionWarningFrom:
		return TierWarning
	default:
		return TierAlert
	}
}

// HeatmapBand grades the share of active members who paid on a day.
type HeatmapBand string

const (
	BandCritical HeatmapBand = "critical"
	BandPartial  HeatmapBand = "partial"
	BandHealthy  HeatmapBand = "healthy"
)

const (
	heatmapCriticalUpTo = 15
	heatmapPartialUpTo  = 65
)

// HeatmapBandOf maps <=15 to critical, 16-65 to partial and >65 to healthy.
func HeatmapBandOf(percent int) HeatmapBand {
	switch {
	case percent > heatmapPartialUpTo:
		return BandHealthy
	case percent > heatmapCriticalUpTo:
		return BandPartial
	default:
		return BandCritical
	}
}
