package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func dense(rows, cols int, vals ...float64) *tensor.Dense {
	if len(vals) == 0 {
		vals = make([]float64, rows*cols)
	}
	backing := append([]float64(nil), vals...)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func TestStoreSetFull(t *testing.T) {
	s := NewStore(3, nil)

	h := dense(3, 2, 1, 2, 3, 4, 5, 6)
	require.NoError(t, s.Set("h", h))

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got.Data().([]float64))
	assert.Equal(t, []string{"h"}, s.Keys())
}

func TestStoreSetFullRowCount(t *testing.T) {
	s := NewStore(3, nil)

	err := s.Set("h", dense(2, 2, 1, 2, 3, 4))
	require.ErrorIs(t, err, ErrRowCount)
}

func TestStoreSetEmptyStore(t *testing.T) {
	s := NewStore(0, nil)

	err := s.Set("h", dense(1, 2, 1, 2))
	require.ErrorIs(t, err, ErrEmptyStore)
}

func TestStoreGetMissingKey(t *testing.T) {
	s := NewStore(3, nil)

	_, err := s.Get("nope")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStorePartialSetDefaultFill(t *testing.T) {
	s := NewStore(4, nil)

	// First write is partial: unwritten rows hold the initializer value.
	require.NoError(t, s.Set("h", dense(2, 2, 1, 1, 2, 2), 1, 3))

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0, 2, 2}, got.Data().([]float64))

	explicit, err := s.ExplicitRows("h")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, explicit.ToArray())
}

func TestStorePartialSetConstantInitializer(t *testing.T) {
	s := NewStore(3, Constant(7))

	require.NoError(t, s.Set("h", dense(1, 2, 1, 1), 0))

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 7, 7, 7, 7}, got.Data().([]float64))
}

func TestStoreBadInitializerRejected(t *testing.T) {
	t.Run("wrong row count", func(t *testing.T) {
		s := NewStore(4, func(rows int, sc Scheme) (*tensor.Dense, error) {
			return dense(rows-1, sc.Shape[0]), nil
		})

		err := s.Set("h", dense(1, 2, 1, 1), 0)
		require.ErrorIs(t, err, ErrInitializer)
		assert.Empty(t, s.Keys())
	})

	t.Run("wrong scheme", func(t *testing.T) {
		s := NewStore(4, func(rows int, _ Scheme) (*tensor.Dense, error) {
			return dense(rows, 3), nil
		})

		err := s.Set("h", dense(1, 2, 1, 1), 0)
		require.ErrorIs(t, err, ErrInitializer)
	})

	t.Run("grow", func(t *testing.T) {
		calls := 0
		s := NewStore(2, func(rows int, sc Scheme) (*tensor.Dense, error) {
			calls++
			if calls > 1 {
				return dense(rows+1, sc.Shape[0]), nil
			}
			return Zeros(rows, sc)
		})

		require.NoError(t, s.Set("h", dense(1, 2, 1, 1), 0))
		err := s.Grow(3)
		require.ErrorIs(t, err, ErrInitializer)
	})
}

func TestStorePartialSetSchemeMismatch(t *testing.T) {
	s := NewStore(3, nil)
	require.NoError(t, s.Set("h", dense(3, 2, 1, 2, 3, 4, 5, 6)))

	tests := []struct {
		name string
		t    *tensor.Dense
	}{
		{
			name: "wider rows",
			t:    tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float64{1, 2, 3})),
		},
		{
			name: "different dtype",
			t:    tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float32{1, 2})),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set("h", tt.t, 0)
			var sm *SchemeMismatchError
			require.ErrorAs(t, err, &sm)
			assert.Equal(t, "h", sm.Key)
		})
	}
}

func TestStoreFullSetReplacesScheme(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 2, 3, 4)))

	// A full-coverage write may change the per-row scheme.
	wide := dense(2, 3, 1, 2, 3, 4, 5, 6)
	require.NoError(t, s.Set("h", wide))

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, got.Shape())
}

func TestStoreFullCoverageRowListReplacesScheme(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 2, 3, 4)))

	// An explicit id list touching every entity counts as full
	// coverage: the scheme may change, and row order is honored.
	wide := dense(2, 3, 10, 11, 12, 20, 21, 22)
	require.NoError(t, s.Set("h", wide, 1, 0))

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, got.Shape())
	assert.Equal(t, []float64{20, 21, 22, 10, 11, 12}, got.Data().([]float64))
}

func TestStorePartialSetCopiesOnWrite(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 1, 2, 2)))

	before, err := s.Get("h")
	require.NoError(t, err)

	require.NoError(t, s.Set("h", dense(1, 2, 9, 9), 0))

	// The previously returned column must not observe the write.
	assert.Equal(t, []float64{1, 1, 2, 2}, before.Data().([]float64))

	after, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9, 2, 2}, after.Data().([]float64))
}

func TestStoreGetSubset(t *testing.T) {
	s := NewStore(3, nil)
	require.NoError(t, s.Set("h", dense(3, 2, 0, 0, 1, 1, 2, 2)))

	got, err := s.Get("h", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 0, 0}, got.Data().([]float64))
}

func TestStoreGrow(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 1, 2, 2)))

	require.NoError(t, s.Grow(2))
	assert.Equal(t, 4, s.Len())

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 2}, got.Shape())
	assert.Equal(t, []float64{1, 1, 2, 2, 0, 0, 0, 0}, got.Data().([]float64))

	// Grown rows are default-filled, not explicit.
	explicit, err := s.ExplicitRows("h")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, explicit.ToArray())
}

func TestStoreGrowNegative(t *testing.T) {
	s := NewStore(2, nil)
	require.ErrorIs(t, s.Grow(-1), ErrShrink)
}

func TestStoreRemoveAndPop(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 1, 2, 2)))

	popped, err := s.Pop("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2}, popped.Data().([]float64))

	_, err = s.Get("h")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.ErrorIs(t, s.Remove("h"), ErrKeyNotFound)
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Set("h", dense(2, 2, 1, 1, 2, 2)))

	snap := s.Snapshot()

	require.NoError(t, s.Set("h", dense(2, 2, 9, 9, 9, 9)))
	require.NoError(t, s.Set("tmp", dense(2, 1, 5, 5)))

	s.Restore(snap)

	got, err := s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2}, got.Data().([]float64))
	_, err = s.Get("tmp")
	require.ErrorIs(t, err, ErrKeyNotFound)

	// A snapshot survives being restored and can be restored again.
	require.NoError(t, s.Set("h", dense(2, 2, 8, 8, 8, 8)))
	s.Restore(snap)
	got, err = s.Get("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2}, got.Data().([]float64))
}

func TestSchemeInferAndMatch(t *testing.T) {
	h := dense(3, 2, 1, 2, 3, 4, 5, 6)
	sc := InferScheme(h)
	assert.Equal(t, tensor.Shape{2}, sc.Shape)
	assert.Equal(t, tensor.Float64, sc.Dtype)
	assert.True(t, sc.Matches(dense(5, 2)))
	assert.False(t, sc.Matches(dense(5, 3)))
}
