// Package artifact defines the persisted transformer bundle shared between
// the training pipeline and the serving process, and the keyed blob stores
// it travels through. The bundle holds exactly two named components,
// binning_process and selector; the field names are part of the persisted
// contract and downstream loaders key off them.
package artifact

import (
	"encoding/json"
	"fmt"

	"credit-underwriter/internal/binning"
	"credit-underwriter/internal/errs"
	"credit-underwriter/internal/selection"
)

// Transformer is the immutable fitted preprocessing bundle. A new training
// run produces a new, independently versioned bundle; nothing mutates one
// in place.
type Transformer struct {
	Binning  *binning.Process    `json:"binning_process"`
	Selector *selection.Selector `json:"selector"`
}

// Encode serializes the bundle.
func Encode(t *Transformer) ([]byte, error) {
	if t.Binning == nil || t.Selector == nil {
		return nil, fmt.Errorf("transformer bundle is incomplete: %w", errs.ErrConfiguration)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode transformer: %w", err)
	}
	return data, nil
}

// Decode deserializes a bundle and restores its internal lookup state so
// Transform replays bit-for-bit against the training-time output.
func Decode(data []byte) (*Transformer, error) {
	var t Transformer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transformer: %w: %w", err, errs.ErrArtifactUnavailable)
	}
	if t.Binning == nil || t.Selector == nil {
		return nil, fmt.Errorf("transformer bundle is missing components: %w", errs.ErrArtifactUnavailable)
	}
	t.Binning.Rebuild()
	return &t, nil
}

// TransformerKey names the persisted bundle for a data version.
func TransformerKey(version string) string {
	return fmt.Sprintf("transformer_%s.json", version)
}

// ModelKey names the persisted classifier weights for a data version.
func ModelKey(version string) string {
	return fmt.Sprintf("model_%s.json", version)
}
