package detection

import "github.com/securewatch/securewatch/internal/models"

// SeverityFromConfidence maps a scoring confidence to a discrete severity.
// The same thresholds label both the stored event and the derived alert;
// the ingestion path and the worker must never diverge here.
func SeverityFromConfidence(confidence float64) models.Severity {
	switch {
	case confidence > 0.8:
		return models.SeverityCritical
	case confidence > 0.6:
		return models.SeverityHigh
	case confidence > 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
