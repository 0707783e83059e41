// Package model defines the classifier contract the pipeline trains and
// the serving path queries, plus a deterministic logistic scorecard as the
// default implementation. Anything with the same Fit/PredictProba shape
// (a boosted-tree runner, an external scorer) plugs in unchanged.
package model

import (
	"credit-underwriter/internal/dataset"
)

// Classifier is the black-box modeling contract. Class 0 is the favorable
// (accept) outcome by convention; PredictProba returns one probability
// vector per row, ordered by class index.
type Classifier interface {
	Fit(X *dataset.Frame, target []int) error
	PredictProba(X *dataset.Frame) ([][]float64, error)
}

// Factory builds fresh, unfitted classifiers. The sequential feature
// selector needs one per scored candidate subset.
type Factory func() Classifier
