package model

import (
	"fmt"
	"math"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"gonum.org/v1/gonum/mat"
)

// Logistic is a regularized logistic regression over bin codes, trained by
// fixed-iteration batch gradient descent from a zero start, so two fits on
// identical data produce identical weights. Exported fields round-trip
// through JSON for registry persistence.
type Logistic struct {
	Features     []string  `json:"features"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
	LearningRate float64   `json:"learning_rate"`
	Iterations   int       `json:"iterations"`
	L2           float64   `json:"l2"`
}

// NewLogistic returns an unfitted model with the training schedule the
// pipeline defaults to.
func NewLogistic(learningRate float64, iterations int) *Logistic {
	if learningRate <= 0 {
		learningRate = 0.1
	}
	if iterations <= 0 {
		iterations = 300
	}
	return &Logistic{LearningRate: learningRate, Iterations: iterations, L2: 1e-4}
}

// Fit trains on the frame's numeric columns against the binary target.
func (m *Logistic) Fit(X *dataset.Frame, target []int) error {
	if X.Rows() != len(target) {
		return fmt.Errorf("frame has %d rows, target has %d: %w", X.Rows(), len(target), errs.ErrInvalidInput)
	}
	m.Features = X.Names()
	design, err := m.designMatrix(X, true)
	if err != nil {
		return err
	}

	rows, cols := X.Rows(), len(m.Features)
	y := make([]float64, rows)
	for i, t := range target {
		if t != 0 && t != 1 {
			return fmt.Errorf("target row %d is not binary: %w", i, errs.ErrInvalidInput)
		}
		y[i] = float64(t)
	}

	m.Weights = make([]float64, cols)
	m.Bias = 0
	grad := make([]float64, cols)
	for it := 0; it < m.Iterations; it++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i := 0; i < rows; i++ {
			row := design.RawRowView(i)
			z := m.Bias
			for j, w := range m.Weights {
				z += w * row[j]
			}
			diff := sigmoid(z) - y[i]
			for j := range grad {
				grad[j] += diff * row[j]
			}
			gradBias += diff
		}
		scale := m.LearningRate / float64(rows)
		for j := range m.Weights {
			m.Weights[j] -= scale * (grad[j] + m.L2*m.Weights[j]*float64(rows))
		}
		m.Bias -= scale * gradBias
	}
	return nil
}

// PredictProba returns [pAccept, pDecline] per row, where class 1 is the
// modeled (decline) event.
func (m *Logistic) PredictProba(X *dataset.Frame) ([][]float64, error) {
	if m.Weights == nil {
		return nil, fmt.Errorf("model is not fitted: %w", errs.ErrConfiguration)
	}
	design, err := m.designMatrix(X, false)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, X.Rows())
	for i := 0; i < X.Rows(); i++ {
		row := design.RawRowView(i)
		z := m.Bias
		for j, w := range m.Weights {
			z += w * row[j]
		}
		p1 := sigmoid(z)
		out[i] = []float64{1 - p1, p1}
	}
	return out, nil
}

// designMatrix standardizes the frame's columns into a dense matrix.
// Missing cells fall back to the column mean (code columns arriving here
// are already total, this is belt and braces for direct callers).
func (m *Logistic) designMatrix(X *dataset.Frame, fitting bool) (*mat.Dense, error) {
	rows := X.Rows()
	cols := len(m.Features)
	design := mat.NewDense(rows, cols, nil)

	if fitting {
		m.Means = make([]float64, cols)
		m.Stds = make([]float64, cols)
	}

	for j, name := range m.Features {
		col, ok := X.Column(name)
		if !ok {
			return nil, fmt.Errorf("feature %q not in frame: %w", name, errs.ErrConfiguration)
		}
		if col.Kind != dataset.Numeric {
			return nil, fmt.Errorf("feature %q is not numeric: %w", name, errs.ErrInvalidInput)
		}

		if fitting {
			var sum, sumSq float64
			n := 0
			for i, v := range col.Nums {
				if col.Missing[i] {
					continue
				}
				sum += v
				sumSq += v * v
				n++
			}
			if n > 0 {
				m.Means[j] = sum / float64(n)
				variance := sumSq/float64(n) - m.Means[j]*m.Means[j]
				if variance > 0 {
					m.Stds[j] = math.Sqrt(variance)
				}
			}
		}

		std := m.Stds[j]
		if std == 0 {
			std = 1
		}
		for i := 0; i < rows; i++ {
			v := m.Means[j]
			if !col.Missing[i] {
				v = col.Nums[i]
			}
			design.Set(i, j, (v-m.Means[j])/std)
		}
	}
	return design, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
