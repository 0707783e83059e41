package model

import (
	"encoding/json"
	"fmt"

	"credit-underwriter/internal/errs"
)

// EncodeLogistic serializes fitted scorecard weights for the registry.
func EncodeLogistic(m *Logistic) ([]byte, error) {
	if m.Weights == nil {
		return nil, fmt.Errorf("model is not fitted: %w", errs.ErrConfiguration)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return data, nil
}

// DecodeLogistic restores a fitted scorecard from registry bytes.
func DecodeLogistic(data []byte) (*Logistic, error) {
	var m Logistic
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w: %w", err, errs.ErrArtifactUnavailable)
	}
	if m.Weights == nil || len(m.Features) != len(m.Weights) {
		return nil, fmt.Errorf("model weights are malformed: %w", errs.ErrArtifactUnavailable)
	}
	return &m, nil
}
