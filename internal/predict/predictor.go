// Package predict applies a loaded transformer artifact and classifier to
// raw record batches and derives per-row entropy/confidence diagnostics.
// A Service is immutable after construction and safe for concurrent use;
// the only shared mutable state in the serving path lives in the metrics
// observer, not here.
package predict

import (
	"context"
	"fmt"
	"math"

	"credit-underwriter/internal/artifact"
	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"
	"credit-underwriter/internal/model"

	"github.com/rs/zerolog/log"
)

// entropyEps keeps log2 defined when a class probability is exactly zero.
const entropyEps = 1e-10

// Labels emitted per prediction. Class index 0 is the favorable outcome by
// fixed convention.
const (
	LabelAccept  = "Accept"
	LabelDecline = "Decline"
)

// Prediction is the per-row inference result.
type Prediction struct {
	Result      string  `json:"result"`
	ProbAccept  float64 `json:"prob_accept"`
	ProbDecline float64 `json:"prob_decline"`
	Entropy     float64 `json:"entropy"`
	Confidence  float64 `json:"confidence"`
}

// BatchResult carries a batch's predictions and its aggregate diagnostics.
type BatchResult struct {
	Predictions   []Prediction `json:"predictions"`
	AvgEntropy    float64      `json:"avg_entropy"`
	AvgConfidence float64      `json:"avg_confidence"`
}

// Service owns the loaded transformer and classifier for the process
// lifetime. Both are read-only after construction.
type Service struct {
	transformer *artifact.Transformer
	classifier  model.Classifier
	categorical map[string]bool
}

// NewService wires a fitted transformer and classifier together.
func NewService(t *artifact.Transformer, clf model.Classifier) *Service {
	cats := make(map[string]bool)
	for _, n := range t.Binning.CategoricalVariables {
		cats[n] = true
	}
	return &Service{transformer: t, classifier: clf, categorical: cats}
}

// Load fetches and decodes the transformer bundle and classifier weights
// from the store. A failure here is fatal to a serving process: it must
// not serve without a complete artifact.
func Load(ctx context.Context, store artifact.Store, version string) (*Service, error) {
	data, err := store.Get(ctx, artifact.TransformerKey(version))
	if err != nil {
		return nil, fmt.Errorf("load transformer: %w", err)
	}
	transformer, err := artifact.Decode(data)
	if err != nil {
		return nil, err
	}

	modelData, err := store.Get(ctx, artifact.ModelKey(version))
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	clf, err := model.DecodeLogistic(modelData)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("version", version).
		Int("variables", len(transformer.Binning.VariableNames)).
		Int("selected", len(transformer.Selector.Selected)).
		Msg("transformer artifact loaded")
	return NewService(transformer, clf), nil
}

// Infer runs the full inference contract on a raw record batch: project
// onto the artifact's expected columns (extra fields dropped, absent
// fields null through the missing-bin path), bin, select, classify, then
// derive diagnostics.
func (s *Service) Infer(records []map[string]any) (*BatchResult, error) {
	frame, err := dataset.FromRecords(records, s.transformer.Binning.VariableNames, s.categorical)
	if err != nil {
		return nil, err
	}
	return s.InferFrame(frame)
}

// InferFrame is Infer for callers that already hold a frame.
func (s *Service) InferFrame(frame *dataset.Frame) (*BatchResult, error) {
	binned, err := s.transformer.Binning.Transform(frame)
	if err != nil {
		return nil, err
	}
	selected, err := s.transformer.Selector.Transform(binned)
	if err != nil {
		return nil, err
	}
	proba, err := s.classifier.PredictProba(selected)
	if err != nil {
		return nil, fmt.Errorf("classifier prediction: %w", err)
	}
	if len(proba) != frame.Rows() {
		return nil, fmt.Errorf("classifier returned %d rows for %d inputs: %w", len(proba), frame.Rows(), errs.ErrInvalidInput)
	}

	res := &BatchResult{Predictions: make([]Prediction, len(proba))}
	for i, p := range proba {
		pred := buildPrediction(p)
		res.Predictions[i] = pred
		res.AvgEntropy += pred.Entropy
		res.AvgConfidence += pred.Confidence
	}
	n := float64(len(proba))
	res.AvgEntropy /= n
	res.AvgConfidence /= n
	return res, nil
}

func buildPrediction(p []float64) Prediction {
	argmax := 0
	for j := 1; j < len(p); j++ {
		if p[j] > p[argmax] {
			argmax = j
		}
	}
	label := LabelAccept
	if argmax != 0 {
		label = LabelDecline
	}

	pred := Prediction{
		Result:     label,
		Entropy:    Entropy(p),
		Confidence: Confidence(p),
	}
	if len(p) > 0 {
		pred.ProbAccept = p[0]
	}
	if len(p) > 1 {
		pred.ProbDecline = p[1]
	}
	return pred
}

// Entropy is the Shannon entropy of a probability vector in bits.
func Entropy(p []float64) float64 {
	var h float64
	for _, pi := range p {
		h -= pi * math.Log2(pi+entropyEps)
	}
	return h
}

// Confidence is the top class probability.
func Confidence(p []float64) float64 {
	best := 0.0
	for _, pi := range p {
		if pi > best {
			best = pi
		}
	}
	return best
}
