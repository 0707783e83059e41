package rowstore

import (
	"errors"
	"path/filepath"
	"testing"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFrameAndGet(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(3)
	require.NoError(t, f.AddColumn(dataset.IDColumn, &dataset.Column{
		Kind:    dataset.Numeric,
		Nums:    []float64{100001, 0, 100003},
		Missing: []bool{false, true, false},
	}))
	require.NoError(t, f.AddColumn("income", dataset.NewNumericColumn([]float64{1000, 2000, 3000})))
	require.NoError(t, f.AddColumn("contract", dataset.NewCategoricalColumn([]string{"Cash", "Cash", "Revolving"}, nil)))

	s := openTestStore(t)
	n, err := s.LoadFrame(f)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "rows with a missing ID are skipped")

	rec, err := s.Get(100003)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, rec["income"])
	assert.Equal(t, "Revolving", rec["contract"])
	assert.Equal(t, 100003.0, rec[dataset.IDColumn])
}

func TestGetMissingID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.Get(424242)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestLoadFrameRequiresIDColumn(t *testing.T) {
	t.Parallel()

	f := dataset.NewFrame(1)
	require.NoError(t, f.AddColumn("income", dataset.NewNumericColumn([]float64{1})))

	s := openTestStore(t)
	_, err := s.LoadFrame(f)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestLoadFrameOverwritesExistingRows(t *testing.T) {
	t.Parallel()

	build := func(income float64) *dataset.Frame {
		f := dataset.NewFrame(1)
		require.NoError(t, f.AddColumn(dataset.IDColumn, dataset.NewNumericColumn([]float64{7})))
		require.NoError(t, f.AddColumn("income", dataset.NewNumericColumn([]float64{income})))
		return f
	}

	s := openTestStore(t)
	_, err := s.LoadFrame(build(100))
	require.NoError(t, err)
	_, err = s.LoadFrame(build(200))
	require.NoError(t, err)

	rec, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, 200.0, rec["income"], "a reload replaces the stored record")
}
