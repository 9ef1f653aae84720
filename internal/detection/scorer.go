package detection

import (
	"fmt"

	"go.uber.org/zap"
)

// Verdict is the output of one scoring call. Under the model backend a more
// negative score is more anomalous; the rule backend only produces scores <= 0.
type Verdict struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
	Confidence   float64 `json:"confidence"`
}

// Scorer produces an anomaly verdict from a feature set. Implementations are
// deterministic and safe for concurrent use.
type Scorer interface {
	Score(f FeatureSet) Verdict
}

// Rule weights for the heuristic backend.
const (
	ruleAnomalyScoreThreshold = -0.3
	ruleConfidenceThreshold   = 0.5
	longLogThreshold          = 500
)

// RuleScorer is the deterministic heuristic backend, used when no trained
// model artifact exists and as the per-call fallback when the model faults.
type RuleScorer struct{}

// Score accumulates weighted penalties from the feature indicators.
func (RuleScorer) Score(f FeatureSet) Verdict {
	score := 0.0
	confidence := 0.0

	if f.HasSQLKeywords {
		score -= 0.5
		confidence += 0.6
	}
	if f.HasScriptTags {
		score -= 0.4
		confidence += 0.5
	}
	if f.FailedLogin {
		score -= 0.3
		confidence += 0.4
	}
	if f.LogLength > longLogThreshold {
		score -= 0.2
		confidence += 0.3
	}
	if f.Hour >= 3 && f.Hour <= 5 {
		score -= 0.1
		confidence += 0.2
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	return Verdict{
		IsAnomaly:    score < ruleAnomalyScoreThreshold || confidence > ruleConfidenceThreshold,
		AnomalyScore: score,
		Confidence:   confidence,
	}
}

// Detector selects the scoring backend once at construction: the model
// backend when both artifact files load, otherwise the rule backend for the
// process lifetime. A model fault on a single call falls back to the rule
// backend for that call only; no error ever reaches the caller.
type Detector struct {
	model  *ModelScorer
	rules  RuleScorer
	logger *zap.Logger
}

// NewDetector loads the model artifacts and builds a detector. Missing
// artifacts are not an error: detection degrades to the rule backend.
func NewDetector(cfg ModelConfig, logger *zap.Logger) *Detector {
	d := &Detector{logger: logger}

	model, err := LoadModelScorer(cfg)
	if err != nil {
		logger.Warn("Model artifacts unavailable, using rule-based detection",
			zap.String("model_path", cfg.ModelPath),
			zap.String("scaler_path", cfg.ScalerPath),
			zap.Error(err),
		)
		return d
	}

	d.model = model
	logger.Info("Anomaly model loaded",
		zap.String("model_path", cfg.ModelPath),
		zap.Int("trees", len(model.forest.Trees)),
	)
	return d
}

// ModelAvailable reports whether the trained model backend is active.
func (d *Detector) ModelAvailable() bool {
	return d.model != nil
}

// Score runs the active backend. Model faults are logged and the rule
// verdict for the same feature set is returned instead.
func (d *Detector) Score(f FeatureSet) Verdict {
	if d.model != nil {
		verdict, err := d.model.predict(f)
		if err == nil {
			return verdict
		}
		d.logger.Warn("Model prediction failed, falling back to rules", zap.Error(err))
	}
	return d.rules.Score(f)
}

var _ Scorer = (*Detector)(nil)

// FormatScore renders an anomaly score the way it is persisted on events
// and alerts.
func FormatScore(score float64) string {
	return fmt.Sprintf("%g", score)
}
