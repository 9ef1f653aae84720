package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ModelConfig names the two artifact files exported by the training
// pipeline. Both are loaded once at startup; there is no hot reload.
type ModelConfig struct {
	ModelPath  string `yaml:"model_path"`
	ScalerPath string `yaml:"scaler_path"`
}

// DefaultModelConfig returns the conventional artifact locations.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelPath:  "ml-engine/anomaly_detector.json",
		ScalerPath: "ml-engine/scaler.json",
	}
}

// scalerArtifact is a stored standard-scaling transform.
type scalerArtifact struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// forestNode is one node of an isolation tree. Feature -1 marks a leaf.
type forestNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

type forestTree struct {
	Nodes []forestNode `json:"nodes"`
}

// forestArtifact is a trained isolation forest exported to JSON. Offset is
// the decision threshold learned at fit time; NSamples is the subsample size
// used to normalize path lengths.
type forestArtifact struct {
	NSamples int          `json:"n_samples"`
	Offset   float64      `json:"offset"`
	Trees    []forestTree `json:"trees"`
}

// ModelScorer applies the stored scaling transform and isolation forest.
// The decision-function output is the anomaly score: more negative is more
// anomalous, and a negative decision is the outlier label.
type ModelScorer struct {
	scaler scalerArtifact
	forest forestArtifact
}

// LoadModelScorer reads both artifact files and validates their shape.
func LoadModelScorer(cfg ModelConfig) (*ModelScorer, error) {
	var scaler scalerArtifact
	if err := readJSONFile(cfg.ScalerPath, &scaler); err != nil {
		return nil, fmt.Errorf("loading scaler artifact: %w", err)
	}
	if len(scaler.Mean) == 0 || len(scaler.Mean) != len(scaler.Scale) {
		return nil, errors.New("scaler artifact has mismatched mean/scale shapes")
	}

	var forest forestArtifact
	if err := readJSONFile(cfg.ModelPath, &forest); err != nil {
		return nil, fmt.Errorf("loading model artifact: %w", err)
	}
	if len(forest.Trees) == 0 {
		return nil, errors.New("model artifact contains no trees")
	}
	if forest.NSamples < 2 {
		return nil, errors.New("model artifact has invalid sample count")
	}

	return &ModelScorer{scaler: scaler, forest: forest}, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// predict runs the full transform + forest on one feature set. Any internal
// fault (shape mismatch, malformed tree, non-finite output) is returned as
// an error so the caller can fall back to the rule backend.
func (m *ModelScorer) predict(f FeatureSet) (Verdict, error) {
	vec := f.Vector()
	if len(vec) != len(m.scaler.Mean) {
		return Verdict{}, fmt.Errorf("feature vector length %d does not match scaler shape %d",
			len(vec), len(m.scaler.Mean))
	}

	scaled := make([]float64, len(vec))
	for i, x := range vec {
		if m.scaler.Scale[i] == 0 {
			scaled[i] = 0
			continue
		}
		scaled[i] = (x - m.scaler.Mean[i]) / m.scaler.Scale[i]
	}

	var totalPath float64
	for ti := range m.forest.Trees {
		depth, err := m.forest.Trees[ti].pathLength(scaled)
		if err != nil {
			return Verdict{}, fmt.Errorf("tree %d: %w", ti, err)
		}
		totalPath += depth
	}
	avgPath := totalPath / float64(len(m.forest.Trees))

	// Standard isolation forest scoring: anomaly score in (0,1], then the
	// score-samples convention (negated) and the fitted offset.
	anomaly := math.Pow(2, -avgPath/averagePathLength(m.forest.NSamples))
	decision := -anomaly - m.forest.Offset
	if math.IsNaN(decision) || math.IsInf(decision, 0) {
		return Verdict{}, errors.New("non-finite decision value")
	}

	return Verdict{
		IsAnomaly:    decision < 0,
		AnomalyScore: decision,
		Confidence:   math.Abs(decision),
	}, nil
}

// pathLength walks one sample down the tree, terminating at a leaf with the
// usual subsample-size correction.
func (t *forestTree) pathLength(scaled []float64) (float64, error) {
	idx := 0
	depth := 0.0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("node index %d out of range", idx)
		}
		node := t.Nodes[idx]
		if node.Feature < 0 {
			return depth + averagePathLength(node.Size), nil
		}
		if node.Feature >= len(scaled) {
			return 0, fmt.Errorf("node references feature %d beyond vector", node.Feature)
		}
		if scaled[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		depth++
	}
	return 0, errors.New("tree walk did not terminate")
}

const eulerMascheroni = 0.5772156649015329

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search over n samples.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
	}
}
