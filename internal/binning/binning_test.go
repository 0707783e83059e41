package binning

import (
	"errors"
	"fmt"
	"testing"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// riskGrid builds a 200-row numeric feature whose event rate rises with the
// value, plus the matching binary target.
func riskGrid() ([]float64, []bool, []int) {
	vals := make([]float64, 200)
	missing := make([]bool, 200)
	target := make([]int, 200)
	for i := range vals {
		vals[i] = float64(i)
		// Roughly 5% events in the bottom half, 60% in the top half.
		if i < 100 {
			if i%20 == 0 {
				target[i] = 1
			}
		} else if i%5 != 0 {
			target[i] = 1
		}
	}
	return vals, missing, target
}

func TestFitNumericMonotonicEventRates(t *testing.T) {
	t.Parallel()

	vals, missing, target := riskGrid()
	p, err := fitNumeric("score", vals, missing, target, DefaultOptions(), nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, p.NumBins(), 2)
	assert.Len(t, p.EventRates, p.NumBins())
	assert.Len(t, p.Counts, p.NumBins())

	for i := 1; i < len(p.EventRates); i++ {
		assert.GreaterOrEqual(t, p.EventRates[i], p.EventRates[i-1],
			"event rates must be non-decreasing after pooling")
	}

	total := 0
	for _, n := range p.Counts {
		total += n
	}
	assert.Equal(t, 200, total, "every row lands in exactly one bin")
}

func TestFitNumericDeterministic(t *testing.T) {
	t.Parallel()

	vals, missing, target := riskGrid()
	a, err := fitNumeric("score", vals, missing, target, DefaultOptions(), nil)
	require.NoError(t, err)
	b, err := fitNumeric("score", vals, missing, target, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, a.Splits, b.Splits)
	assert.Equal(t, a.EventRates, b.EventRates)
	assert.Equal(t, a.Counts, b.Counts)
}

func TestFitNumericConstantColumn(t *testing.T) {
	t.Parallel()

	vals := []float64{5, 5, 5, 5}
	missing := make([]bool, 4)
	target := []int{0, 1, 0, 1}
	_, err := fitNumeric("flat", vals, missing, target, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = fitNumeric("empty", nil, nil, nil, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestTransformNumericBoundaries(t *testing.T) {
	t.Parallel()

	p := &Partition{Feature: "x", Splits: []float64{10, 20}}
	require.Equal(t, 3, p.NumBins())
	require.Equal(t, 3, p.SpecialBin())

	cases := []struct {
		v    float64
		want int
	}{
		{-100, 0},
		{10, 0}, // boundary is inclusive on the left bin
		{10.1, 1},
		{20, 1},
		{25, 2},
		{1e9, 2}, // beyond the training range still lands in the last bin
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.TransformNumeric(tc.v, false), "value %v", tc.v)
	}
}

func TestTransformNumericMissing(t *testing.T) {
	t.Parallel()

	bare := &Partition{Feature: "x", Splits: []float64{10}}
	assert.Equal(t, bare.SpecialBin(), bare.TransformNumeric(0, true),
		"missing without imputation routes to the special bin")

	imputed := &Partition{Feature: "x", Splits: []float64{10}, HasImpute: true, ImputeNum: 42}
	assert.Equal(t, 1, imputed.TransformNumeric(0, true),
		"missing with imputation follows the fill value's bin")
}

func TestFitCategoricalGroupsAndUnseenLevels(t *testing.T) {
	t.Parallel()

	n := 300
	vals := make([]string, n)
	missing := make([]bool, n)
	target := make([]int, n)
	levels := []string{"A", "B", "C"}
	// A is safe, B is middling, C is risky.
	period := map[string]int{"A": 10, "B": 4, "C": 2}
	counts := map[string]int{}
	for i := range vals {
		lv := levels[i%3]
		vals[i] = lv
		if counts[lv]%period[lv] == 0 {
			target[i] = 1
		}
		counts[lv]++
	}

	p, err := fitCategorical("grade", vals, missing, target, DefaultOptions(), nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.NumBins(), 2)

	seen := map[string]bool{}
	for _, g := range p.Groups {
		for _, lv := range g {
			seen[lv] = true
		}
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, seen,
		"every training level belongs to exactly one group")

	codeA := p.TransformCategorical("A", false)
	codeC := p.TransformCategorical("C", false)
	assert.Less(t, codeA, p.SpecialBin())
	assert.Less(t, codeC, p.SpecialBin())
	assert.Less(t, p.EventRates[codeA], p.EventRates[codeC],
		"groups are ordered by training event rate")

	assert.Equal(t, p.SpecialBin(), p.TransformCategorical("D", false),
		"a level never seen in training routes to the special bin")
	assert.Equal(t, p.SpecialBin(), p.TransformCategorical("", true))
}

func TestFitCategoricalSingleLevel(t *testing.T) {
	t.Parallel()

	vals := []string{"only", "only", "only"}
	missing := make([]bool, 3)
	_, err := fitCategorical("flat", vals, missing, []int{0, 1, 0}, DefaultOptions(), nil)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestFitCategoricalMergesUndersizedLevels(t *testing.T) {
	t.Parallel()

	// 200 rows: two well-populated levels and one rare level that falls
	// under the minimum bin size and must be folded into a neighbor.
	n := 200
	vals := make([]string, n)
	missing := make([]bool, n)
	target := make([]int, n)
	for i := 0; i < n; i++ {
		switch {
		case i < 95:
			vals[i] = "low"
			if i%10 == 0 {
				target[i] = 1
			}
		case i < 190:
			vals[i] = "high"
			if i%2 == 0 {
				target[i] = 1
			}
		default:
			vals[i] = "rare"
			if i%3 == 0 {
				target[i] = 1
			}
		}
	}

	opts := Options{MaxPrebins: 20, MaxBins: 10, MinBinFrac: 0.1}
	p, err := fitCategorical("grade", vals, missing, target, opts, nil)
	require.NoError(t, err)

	require.Equal(t, 2, p.NumBins())
	for _, count := range p.Counts {
		assert.GreaterOrEqual(t, count, 20, "no bin may stay under the minimum size")
	}
	assert.Less(t, p.TransformCategorical("rare", false), p.SpecialBin(),
		"the rare level lives in a merged regular bin, not the special bin")
}

func TestFitCategoricalRespectsMaxBins(t *testing.T) {
	t.Parallel()

	n := 1000
	vals := make([]string, n)
	missing := make([]bool, n)
	target := make([]int, n)
	for i := range vals {
		vals[i] = fmt.Sprintf("lv%02d", i%25)
		if i%(2+i%25) == 0 {
			target[i] = 1
		}
	}

	opts := Options{MaxPrebins: 20, MaxBins: 5, MinBinFrac: 0.01}
	p, err := fitCategorical("many", vals, missing, target, opts, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.NumBins(), 5)
}

func TestProcessFitAndTransform(t *testing.T) {
	t.Parallel()

	vals, _, target := riskGrid()
	f := dataset.NewFrame(200)
	require.NoError(t, f.AddColumn("score", dataset.NewNumericColumn(vals)))

	grades := make([]string, 200)
	for i := range grades {
		if target[i] == 1 {
			grades[i] = "bad"
		} else {
			grades[i] = "good"
		}
	}
	require.NoError(t, f.AddColumn("grade", dataset.NewCategoricalColumn(grades, nil)))

	proc := NewProcess([]string{"score", "grade"}, []string{"grade"}, DefaultOptions(), nil)
	require.NoError(t, proc.Fit(f, target))
	require.Len(t, proc.Partitions, 2)

	binned, err := proc.Transform(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "grade"}, binned.Names())
	assert.Equal(t, 200, binned.Rows())

	col, _ := binned.Column("score")
	part := proc.Partitions["score"]
	for i, code := range col.Nums {
		assert.False(t, col.Missing[i])
		assert.GreaterOrEqual(t, int(code), 0)
		assert.LessOrEqual(t, int(code), part.SpecialBin())
	}
}

func TestProcessTransformAbsentColumn(t *testing.T) {
	t.Parallel()

	vals, _, target := riskGrid()
	train := dataset.NewFrame(200)
	require.NoError(t, train.AddColumn("score", dataset.NewNumericColumn(vals)))

	proc := NewProcess([]string{"score"}, nil, DefaultOptions(), nil)
	require.NoError(t, proc.Fit(train, target))

	// A serving batch that omits the feature entirely still transforms.
	empty := dataset.NewFrame(3)
	require.NoError(t, empty.AddColumn("other", dataset.NewNumericColumn([]float64{1, 2, 3})))
	binned, err := proc.Transform(empty)
	require.NoError(t, err)

	col, _ := binned.Column("score")
	special := float64(proc.Partitions["score"].SpecialBin())
	for _, code := range col.Nums {
		assert.Equal(t, special, code)
	}
}

func TestProcessFitErrors(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(4)
	require.NoError(t, f.AddColumn("x", dataset.NewNumericColumn([]float64{1, 2, 3, 4})))

	proc := NewProcess([]string{"x"}, nil, DefaultOptions(), nil)
	err := proc.Fit(f, []int{0, 1})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput), "target length mismatch")

	err = proc.Fit(f, []int{0, 1, 2, 0})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput), "non-binary target")

	missing := NewProcess([]string{"absent"}, nil, DefaultOptions(), nil)
	err = missing.Fit(f, []int{0, 1, 0, 1})
	assert.True(t, errors.Is(err, errs.ErrConfiguration), "unknown feature name")

	unfitted := NewProcess([]string{"x"}, nil, DefaultOptions(), nil)
	_, err = unfitted.Transform(f)
	assert.True(t, errors.Is(err, errs.ErrConfiguration), "transform before fit")
}

func TestProcessImputationAppliedAtFitAndTransform(t *testing.T) {
	t.Parallel()

	vals, missing, target := riskGrid()
	// Null out a tenth of the rows; the imputation fills them with 50.
	for i := 0; i < 200; i += 10 {
		missing[i] = true
	}
	f := dataset.NewFrame(200)
	require.NoError(t, f.AddColumn("score", &dataset.Column{Kind: dataset.Numeric, Nums: vals, Missing: missing}))

	imp := map[string]Imputation{"score": {Num: 50}}
	proc := NewProcess([]string{"score"}, nil, DefaultOptions(), imp)
	require.NoError(t, proc.Fit(f, target))

	part := proc.Partitions["score"]
	require.True(t, part.HasImpute)
	assert.Equal(t, 50.0, part.ImputeNum)

	// A missing cell and an explicit 50 must land in the same bin.
	want := part.TransformNumeric(50, false)
	assert.Equal(t, want, part.TransformNumeric(0, true))
}
