package preprocess

import (
	"errors"
	"math"
	"testing"

	"credit-underwriter/internal/binning"
	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIVSeparatingFeature(t *testing.T) {
	t.Parallel()

	// Bin code equals the target: maximal separation.
	codes := make([]float64, 100)
	target := make([]int, 100)
	for i := range codes {
		target[i] = i % 2
		codes[i] = float64(target[i])
	}
	iv, err := IV(codes, target)
	require.NoError(t, err)
	assert.Greater(t, iv, 1.0, "perfect separation scores very high")
	assert.False(t, math.IsInf(iv, 0), "zero cells are smoothed, never infinite")
}

func TestIVIndependentFeature(t *testing.T) {
	t.Parallel()

	// Each bin holds an identical good/bad mix, so no information.
	codes := make([]float64, 100)
	target := make([]int, 100)
	for i := range codes {
		codes[i] = float64((i / 2) % 5)
		target[i] = i % 2
	}
	iv, err := IV(codes, target)
	require.NoError(t, err)
	assert.InDelta(t, 0, iv, 1e-12)
}

func TestIVNonNegative(t *testing.T) {
	t.Parallel()

	codes := []float64{0, 0, 1, 1, 2, 2, 2, 0, 1, 2}
	target := []int{0, 1, 0, 0, 1, 1, 0, 0, 1, 1}
	iv, err := IV(codes, target)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, iv, 0.0)
}

func TestIVBitwiseDeterministic(t *testing.T) {
	t.Parallel()

	// Many bins make the accumulation order matter: the sum must come out
	// identical to the last bit on every call, not merely close.
	n := 10007
	codes := make([]float64, n)
	target := make([]int, n)
	for i := range codes {
		codes[i] = float64(i % 37)
		if i%3 == 0 {
			target[i] = 1
		}
	}

	want, err := IV(codes, target)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		got, err := IV(codes, target)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestIVErrors(t *testing.T) {
	t.Parallel()

	_, err := IV(nil, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	_, err = IV([]float64{0, 1}, []int{0})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	_, err = IV([]float64{0, 1}, []int{0, 2})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	_, err = IV([]float64{0, 1, 0}, []int{1, 1, 1})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput), "single-class target is unscoreable")
}

func TestFitImputerMedianAndMode(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(5)
	require.NoError(t, f.AddColumn("odd", dataset.NewNumericColumn([]float64{5, 1, 3, 9, 7})))
	require.NoError(t, f.AddColumn("even", &dataset.Column{
		Kind:    dataset.Numeric,
		Nums:    []float64{10, 20, 30, 40, 0},
		Missing: []bool{false, false, false, false, true},
	}))
	require.NoError(t, f.AddColumn("grade", dataset.NewCategoricalColumn(
		[]string{"B", "A", "B", "A", "C"}, nil)))

	imp := FitImputer(f, []string{"grade"}, []string{"odd", "even"})

	assert.Equal(t, 5.0, imp["odd"].Num, "odd-length median")
	assert.Equal(t, 25.0, imp["even"].Num, "even-length median averages the middle pair")
	assert.Equal(t, "A", imp["grade"].Cat, "mode ties break to the smaller level name")
}

func TestFitImputerAllNullColumns(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(3)
	require.NoError(t, f.AddColumn("void", &dataset.Column{
		Kind:    dataset.Numeric,
		Nums:    []float64{0, 0, 0},
		Missing: []bool{true, true, true},
	}))
	require.NoError(t, f.AddColumn("blank", dataset.NewCategoricalColumn(
		[]string{"", "", ""}, []bool{true, true, true})))

	imp := FitImputer(f, []string{"blank"}, []string{"void"})
	_, ok := imp["void"]
	assert.False(t, ok, "all-null numeric column stays unimputed")
	assert.Equal(t, "missing", imp["blank"].Cat)
}

// filterFixture builds a training frame exercising each exclusion reason.
func filterFixture(t *testing.T) (*dataset.Frame, []string, map[string]bool, []int) {
	t.Helper()
	n := 100
	f := dataset.NewFrame(n)
	target := make([]int, n)

	strong := make([]float64, n)
	noise := make([]float64, n)
	flat := make([]float64, n)
	gappy := make([]float64, n)
	gappyMissing := make([]bool, n)
	grades := make([]string, n)
	for i := 0; i < n; i++ {
		target[i] = i % 2
		strong[i] = float64(target[i])*10 + float64(i%3)
		noise[i] = float64((i / 2) % 4)
		flat[i] = 7
		gappy[i] = float64(target[i]) * 10
		if i%3 == 0 {
			gappyMissing[i] = true // a third of the cells are null
		}
		if target[i] == 1 {
			grades[i] = "risky"
		} else {
			grades[i] = "safe"
		}
	}

	require.NoError(t, f.AddColumn("strong", dataset.NewNumericColumn(strong)))
	require.NoError(t, f.AddColumn("noise", dataset.NewNumericColumn(noise)))
	require.NoError(t, f.AddColumn("flat", dataset.NewNumericColumn(flat)))
	require.NoError(t, f.AddColumn("gappy", &dataset.Column{Kind: dataset.Numeric, Nums: gappy, Missing: gappyMissing}))
	require.NoError(t, f.AddColumn("grade", dataset.NewCategoricalColumn(grades, nil)))

	candidates := []string{"strong", "noise", "flat", "gappy", "grade"}
	return f, candidates, map[string]bool{"grade": true}, target
}

func TestSelectSurvivors(t *testing.T) {
	t.Parallel()

	f, candidates, cats, target := filterFixture(t)
	cfg := FilterConfig{
		IVMin:          0.02,
		IVMax:          100,
		MaxMissingRate: 0.1,
		Workers:        4,
		BinOpts:        binning.DefaultOptions(),
	}

	res, err := SelectSurvivors(f, candidates, cats, target, f, cfg)
	require.NoError(t, err)

	assert.Contains(t, res.Survivors, "strong")
	assert.Contains(t, res.Survivors, "grade")
	assert.NotContains(t, res.Survivors, "flat")
	assert.NotContains(t, res.Survivors, "noise")
	assert.NotContains(t, res.Survivors, "gappy")

	reasons := map[string]string{}
	for _, ex := range res.Excluded {
		reasons[ex.Feature] = ex.Reason
	}
	assert.Equal(t, ReasonConstant, reasons["flat"])
	assert.Equal(t, ReasonIVLow, reasons["noise"])
	assert.Equal(t, ReasonMissingRate, reasons["gappy"])

	// Every candidate is accounted for exactly once.
	assert.Equal(t, len(candidates), len(res.Survivors)+len(res.Excluded))

	// IV is reported for every feature that reached a trial fit.
	assert.Greater(t, res.IV["strong"], cfg.IVMin)
	_, scored := res.IV["flat"]
	assert.False(t, scored, "constant columns never reach the scorer")
}

func TestSelectSurvivorsIVUpperBound(t *testing.T) {
	t.Parallel()

	f, candidates, cats, target := filterFixture(t)
	cfg := FilterConfig{
		IVMin:          0.02,
		IVMax:          0.5, // the production band; perfect separators exceed it
		MaxMissingRate: 0.1,
		Workers:        1,
		BinOpts:        binning.DefaultOptions(),
	}

	res, err := SelectSurvivors(f, candidates, cats, target, f, cfg)
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, ex := range res.Excluded {
		reasons[ex.Feature] = ex.Reason
	}
	assert.Equal(t, ReasonIVHigh, reasons["strong"], "suspiciously predictive features are capped out")
	assert.Equal(t, ReasonIVHigh, reasons["grade"])
}

func TestSelectSurvivorsOrderStableAcrossWorkerCounts(t *testing.T) {
	t.Parallel()

	f, candidates, cats, target := filterFixture(t)
	cfg := FilterConfig{
		IVMin:          0.02,
		IVMax:          100,
		MaxMissingRate: 0.1,
		BinOpts:        binning.DefaultOptions(),
	}

	cfg.Workers = 1
	serial, err := SelectSurvivors(f, candidates, cats, target, f, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := SelectSurvivors(f, candidates, cats, target, f, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial.Survivors, parallel.Survivors)
	assert.Equal(t, serial.Excluded, parallel.Excluded)
	assert.Equal(t, serial.IV, parallel.IV)
}

func TestSelectSurvivorsUnknownCandidate(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(2)
	require.NoError(t, f.AddColumn("x", dataset.NewNumericColumn([]float64{1, 2})))
	_, err := SelectSurvivors(f, []string{"ghost"}, nil, []int{0, 1}, f, FilterConfig{BinOpts: binning.DefaultOptions()})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestSelectSurvivorsAllMissingColumn(t *testing.T) {
	t.Parallel()

	n := 60
	f := dataset.NewFrame(n)
	target := make([]int, n)
	strong := make([]float64, n)
	voidMissing := make([]bool, n)
	for i := 0; i < n; i++ {
		target[i] = i % 2
		strong[i] = float64(target[i]*10) + float64(i%3)
		voidMissing[i] = true
	}
	require.NoError(t, f.AddColumn("strong", dataset.NewNumericColumn(strong)))
	require.NoError(t, f.AddColumn("void", &dataset.Column{
		Kind:    dataset.Numeric,
		Nums:    make([]float64, n),
		Missing: voidMissing,
	}))

	cfg := FilterConfig{
		IVMin:          0.02,
		IVMax:          100,
		MaxMissingRate: 0.1,
		Workers:        2,
		BinOpts:        binning.DefaultOptions(),
	}
	res, err := SelectSurvivors(f, []string{"strong", "void"}, nil, target, f, cfg)
	require.NoError(t, err)

	// A fully null column is excluded before any trial fit; the rest of the
	// candidate list is unaffected.
	assert.Equal(t, []string{"strong"}, res.Survivors)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "void", res.Excluded[0].Feature)
	assert.Equal(t, ReasonConstant, res.Excluded[0].Reason)
	assert.Equal(t, 1.0, res.Excluded[0].MissingRate)
	_, scored := res.IV["void"]
	assert.False(t, scored)
}

func TestSelectSurvivorsImputedVariety(t *testing.T) {
	t.Parallel()

	// A column with one observed level plus nulls is constant on its face,
	// but imputation with a different level makes it fittable.
	n := 40
	cats := make([]string, n)
	missing := make([]bool, n)
	target := make([]int, n)
	for i := 0; i < n; i++ {
		target[i] = i % 2
		if target[i] == 1 {
			missing[i] = true
		} else {
			cats[i] = "seen"
		}
	}
	f := dataset.NewFrame(n)
	require.NoError(t, f.AddColumn("halfnull", dataset.NewCategoricalColumn(cats, missing)))

	cfg := FilterConfig{
		IVMin:          0.0001,
		IVMax:          1000,
		MaxMissingRate: 1,
		Workers:        1,
		BinOpts:        binning.DefaultOptions(),
		Imputation:     map[string]binning.Imputation{"halfnull": {Cat: "filled"}},
	}
	res, err := SelectSurvivors(f, []string{"halfnull"}, map[string]bool{"halfnull": true}, target, f, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"halfnull"}, res.Survivors)
}
