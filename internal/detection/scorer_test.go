package detection

import (
	"math"
	"testing"

	"go.uber.org/zap"
)

func TestRuleScorerSQLOnly(t *testing.T) {
	f := FeatureSet{HasSQLKeywords: true, Hour: 12}
	v := RuleScorer{}.Score(f)

	if !almostEqual(v.AnomalyScore, -0.5) {
		t.Errorf("score = %g, want -0.5", v.AnomalyScore)
	}
	if !almostEqual(v.Confidence, 0.6) {
		t.Errorf("confidence = %g, want 0.6", v.Confidence)
	}
	if !v.IsAnomaly {
		t.Error("expected anomaly: confidence 0.6 exceeds the 0.5 threshold")
	}
}

func TestRuleScorerCleanEvent(t *testing.T) {
	v := RuleScorer{}.Score(FeatureSet{Hour: 12, LogLength: 40})
	if v.IsAnomaly {
		t.Errorf("clean event flagged anomalous: %+v", v)
	}
	if v.AnomalyScore != 0 || v.Confidence != 0 {
		t.Errorf("clean event should score zero, got %+v", v)
	}
}

func TestRuleScorerAllIndicatorsClampsConfidence(t *testing.T) {
	f := FeatureSet{
		Hour:           4,
		LogLength:      600,
		HasSQLKeywords: true,
		HasScriptTags:  true,
		FailedLogin:    true,
	}
	v := RuleScorer{}.Score(f)
	if !almostEqual(v.AnomalyScore, -1.5) {
		t.Errorf("score = %g, want -1.5", v.AnomalyScore)
	}
	if v.Confidence != 1.0 {
		t.Errorf("confidence = %g, want clamped 1.0", v.Confidence)
	}
	if !v.IsAnomaly {
		t.Error("expected anomaly")
	}
}

func TestRuleScorerIndividualWeights(t *testing.T) {
	tests := []struct {
		name    string
		f       FeatureSet
		score   float64
		conf    float64
		anomaly bool
	}{
		{"script only", FeatureSet{HasScriptTags: true, Hour: 12}, -0.4, 0.5, true},
		{"failed login only", FeatureSet{FailedLogin: true, Hour: 12}, -0.3, 0.4, false},
		{"long log only", FeatureSet{LogLength: 501, Hour: 12}, -0.2, 0.3, false},
		{"odd hour only", FeatureSet{Hour: 3}, -0.1, 0.2, false},
		{"hour five", FeatureSet{Hour: 5}, -0.1, 0.2, false},
		{"hour six", FeatureSet{Hour: 6}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := RuleScorer{}.Score(tt.f)
			if !almostEqual(v.AnomalyScore, tt.score) {
				t.Errorf("score = %g, want %g", v.AnomalyScore, tt.score)
			}
			if !almostEqual(v.Confidence, tt.conf) {
				t.Errorf("confidence = %g, want %g", v.Confidence, tt.conf)
			}
			if v.IsAnomaly != tt.anomaly {
				t.Errorf("is_anomaly = %v, want %v", v.IsAnomaly, tt.anomaly)
			}
		})
	}
}

func TestRuleScorerDeterminism(t *testing.T) {
	f := FeatureSet{HasSQLKeywords: true, FailedLogin: true, Hour: 4, LogLength: 700}
	first := RuleScorer{}.Score(f)
	second := RuleScorer{}.Score(f)
	if first != second {
		t.Fatalf("same features produced different verdicts: %+v vs %+v", first, second)
	}
}

// A detector whose model faults must return exactly the rule-based verdict
// for the same feature set.
func TestDetectorFallbackMatchesRuleScorer(t *testing.T) {
	broken := &ModelScorer{
		// Scaler shape does not match the 8-feature vector, so every
		// predict call fails.
		scaler: scalerArtifact{Mean: []float64{0, 0}, Scale: []float64{1, 1}},
		forest: forestArtifact{NSamples: 256, Trees: []forestTree{{}}},
	}
	d := &Detector{model: broken, logger: zap.NewNop()}

	f := FeatureSet{HasSQLKeywords: true, Hour: 12}
	got := d.Score(f)
	want := RuleScorer{}.Score(f)
	if got != want {
		t.Fatalf("fallback verdict %+v differs from rule verdict %+v", got, want)
	}
}

func TestDetectorWithoutModelUsesRules(t *testing.T) {
	d := NewDetector(ModelConfig{ModelPath: "does/not/exist.json", ScalerPath: "missing.json"}, zap.NewNop())
	if d.ModelAvailable() {
		t.Fatal("detector should not report a model with missing artifacts")
	}

	f := FeatureSet{FailedLogin: true, HasScriptTags: true, Hour: 12}
	if got, want := d.Score(f), (RuleScorer{}).Score(f); got != want {
		t.Fatalf("got %+v, want rule verdict %+v", got, want)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
