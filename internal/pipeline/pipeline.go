// Package pipeline orchestrates a full preprocessing and training run:
// train-only imputation, per-feature binning trials, the IV/missing-rate
// survivor filter, the joint binning refit over survivors, feature
// selection, classifier training, and persistence of the transformer
// artifact, model weights, processed CSVs and the by-ID row store. Any
// step failure aborts the run before anything is persisted.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"credit-underwriter/internal/artifact"
	"credit-underwriter/internal/binning"
	"credit-underwriter/internal/cfg"
	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/metrics"
	"credit-underwriter/internal/model"
	"credit-underwriter/internal/preprocess"
	"credit-underwriter/internal/rowstore"
	"credit-underwriter/internal/selection"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Result summarizes a completed run.
type Result struct {
	Version     string
	IV          map[string]float64
	Survivors   []string
	Excluded    []preprocess.Exclusion
	Selected    []string
	TrainRows   int
	TestRows    int
	TrainOutput string
	TestOutput  string
}

// Pipeline runs preprocessing and training end to end.
type Pipeline struct {
	settings cfg.Settings
	store    artifact.Store
	metrics  *metrics.Metrics
}

// New wires a pipeline against an artifact store. Metrics may be nil for
// library callers.
func New(settings cfg.Settings, store artifact.Store, m *metrics.Metrics) *Pipeline {
	return &Pipeline{settings: settings, store: store, metrics: m}
}

// Run executes the full pipeline against the configured train/test CSVs.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx)
	if p.metrics != nil {
		p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.PipelineFailures.Inc()
		} else {
			p.metrics.PipelineRuns.Inc()
			p.metrics.FeaturesSurvived.Set(float64(len(res.Survivors)))
			p.metrics.FeaturesSelected.Set(float64(len(res.Selected)))
		}
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	version := p.settings.DataVersion
	if version == "" {
		version = uuid.NewString()
	}
	log.Info().Str("version", version).Str("train", p.settings.TrainPath).Str("test", p.settings.TestPath).Msg("pipeline run starting")

	trainFull, err := dataset.ReadCSV(p.settings.TrainPath)
	if err != nil {
		return nil, fmt.Errorf("load training data: %w", err)
	}
	testFrame, err := dataset.ReadCSV(p.settings.TestPath)
	if err != nil {
		return nil, fmt.Errorf("load test data: %w", err)
	}

	target, err := dataset.Target(trainFull)
	if err != nil {
		return nil, fmt.Errorf("extract target: %w", err)
	}
	train := trainFull.Drop(dataset.TargetColumn, dataset.IDColumn)

	categorical, numerical := dataset.SplitFeatures(trainFull)
	candidates := append(append([]string(nil), categorical...), numerical...)
	categoricalSet := make(map[string]bool, len(categorical))
	for _, c := range categorical {
		categoricalSet[c] = true
	}
	log.Info().Int("categorical", len(categorical)).Int("numerical", len(numerical)).Msg("feature sets established")

	// Imputation is fitted on the training frame only and rides inside the
	// binning process so serving replays the same fill values.
	imputation := preprocess.FitImputer(train, categorical, numerical)

	binOpts := binning.Options{
		MaxPrebins: p.settings.MaxPrebins,
		MaxBins:    p.settings.MaxBins,
		MinBinFrac: p.settings.MinBinFrac,
	}
	filterCfg := preprocess.FilterConfig{
		IVMin:          p.settings.IVMin,
		IVMax:          p.settings.IVMax,
		MaxMissingRate: p.settings.MaxMissingRate,
		Workers:        p.settings.Workers,
		BinOpts:        binOpts,
		Imputation:     imputation,
	}
	filtered, err := preprocess.SelectSurvivors(train, candidates, categoricalSet, target, train, filterCfg)
	if err != nil {
		return nil, fmt.Errorf("survivor filter: %w", err)
	}
	for _, ex := range filtered.Excluded {
		log.Info().Str("feature", ex.Feature).Str("reason", ex.Reason).Float64("iv", ex.IV).Float64("missing_rate", ex.MissingRate).Msg("feature excluded")
	}
	if len(filtered.Survivors) == 0 {
		// Signaled empty result per the contract; the run cannot proceed
		// to a model without usable features.
		return nil, fmt.Errorf("no features survived filtering: %w", errNoSurvivors)
	}

	survivorCats := make([]string, 0, len(filtered.Survivors))
	for _, name := range filtered.Survivors {
		if categoricalSet[name] {
			survivorCats = append(survivorCats, name)
		}
	}
	joint := binning.NewProcess(filtered.Survivors, survivorCats, binOpts, imputation)
	if err := joint.Fit(train, target); err != nil {
		return nil, fmt.Errorf("joint binning refit: %w", err)
	}
	trainBinned, err := joint.Transform(train)
	if err != nil {
		return nil, fmt.Errorf("transform training frame: %w", err)
	}
	testBinned, err := joint.Transform(testFrame)
	if err != nil {
		return nil, fmt.Errorf("transform test frame: %w", err)
	}

	selector, err := p.buildSelector()
	if err != nil {
		return nil, err
	}
	if err := selector.Fit(trainBinned, target); err != nil {
		return nil, fmt.Errorf("selector fit: %w", err)
	}
	trainSelected, err := selector.Transform(trainBinned)
	if err != nil {
		return nil, fmt.Errorf("selector transform train: %w", err)
	}
	testSelected, err := selector.Transform(testBinned)
	if err != nil {
		return nil, fmt.Errorf("selector transform test: %w", err)
	}
	log.Info().Strs("selected", selector.Selected).Msg("feature selection complete")

	clf := model.NewLogistic(p.settings.LearningRate, p.settings.Iterations)
	if err := clf.Fit(trainSelected, target); err != nil {
		return nil, fmt.Errorf("classifier fit: %w", err)
	}

	// Every fit succeeded; persistence happens only now.
	transformer := &artifact.Transformer{Binning: joint, Selector: selector}
	bundle, err := artifact.Encode(transformer)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, artifact.TransformerKey(version), bundle); err != nil {
		return nil, fmt.Errorf("persist transformer: %w", err)
	}
	weights, err := model.EncodeLogistic(clf)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, artifact.ModelKey(version), weights); err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	trainOut, testOut, err := p.writeOutputs(trainSelected, testSelected, target, version)
	if err != nil {
		return nil, err
	}
	if err := p.loadRowStore(testFrame); err != nil {
		return nil, err
	}

	log.Info().
		Str("version", version).
		Int("survivors", len(filtered.Survivors)).
		Int("selected", len(selector.Selected)).
		Msg("pipeline run complete")

	return &Result{
		Version:     version,
		IV:          filtered.IV,
		Survivors:   filtered.Survivors,
		Excluded:    filtered.Excluded,
		Selected:    selector.Selected,
		TrainRows:   trainSelected.Rows(),
		TestRows:    testSelected.Rows(),
		TrainOutput: trainOut,
		TestOutput:  testOut,
	}, nil
}

func (p *Pipeline) buildSelector() (*selection.Selector, error) {
	switch p.settings.SelectionMethod {
	case selection.MethodKBest:
		return selection.NewKBest(p.settings.NFeatures), nil
	case selection.MethodSequential:
		factory := func() model.Classifier {
			return model.NewLogistic(p.settings.LearningRate, p.settings.Iterations)
		}
		return selection.NewSequential(p.settings.NFeatures, factory), nil
	default:
		return nil, fmt.Errorf("unknown selection method %q: %w", p.settings.SelectionMethod, errBadMethod)
	}
}

// writeOutputs appends TARGET to the selected training matrix and writes
// both processed CSVs under the configured output path.
func (p *Pipeline) writeOutputs(trainSelected, testSelected *dataset.Frame, target []int, version string) (string, string, error) {
	if err := os.MkdirAll(p.settings.OutputPath, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	trainOut := trainSelected.Clone()
	labels := make([]float64, len(target))
	for i, t := range target {
		labels[i] = float64(t)
	}
	if err := trainOut.AddColumn(dataset.TargetColumn, dataset.NewNumericColumn(labels)); err != nil {
		return "", "", err
	}

	trainPath := filepath.Join(p.settings.OutputPath, fmt.Sprintf("processed_train_%s.csv", version))
	testPath := filepath.Join(p.settings.OutputPath, fmt.Sprintf("processed_test_%s.csv", version))
	if err := dataset.WriteCSV(trainOut, trainPath); err != nil {
		return "", "", fmt.Errorf("write processed train: %w", err)
	}
	if err := dataset.WriteCSV(testSelected, testPath); err != nil {
		return "", "", fmt.Errorf("write processed test: %w", err)
	}
	log.Info().Str("train", trainPath).Str("test", testPath).Msg("processed data written")
	return trainPath, testPath, nil
}

// loadRowStore refreshes the by-ID lookup store from the holdout frame.
func (p *Pipeline) loadRowStore(testFrame *dataset.Frame) error {
	if p.settings.RowStorePath == "" {
		return nil
	}
	rows, err := rowstore.Open(p.settings.RowStorePath)
	if err != nil {
		return err
	}
	defer rows.Close()

	n, err := rows.LoadFrame(testFrame)
	if err != nil {
		return fmt.Errorf("load row store: %w", err)
	}
	log.Info().Int("records", n).Str("path", p.settings.RowStorePath).Msg("row store loaded")
	return nil
}
