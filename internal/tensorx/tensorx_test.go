package tensorx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func mat(rows, cols int, vals ...float64) *tensor.Dense {
	backing := append([]float64(nil), vals...)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

func TestGather(t *testing.T) {
	src := mat(4, 2, 0, 0, 1, 1, 2, 2, 3, 3)

	got, err := Gather(src, []int{3, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float64{3, 3, 1, 1, 1, 1}, got.Data().([]float64))
}

func TestGatherErrors(t *testing.T) {
	src := mat(2, 2, 0, 0, 1, 1)

	_, err := Gather(src, nil)
	require.ErrorIs(t, err, ErrNoRows)

	_, err = Gather(src, []int{2})
	require.ErrorIs(t, err, ErrRowIndex)
}

func TestSetRows(t *testing.T) {
	dst := mat(3, 2, 0, 0, 0, 0, 0, 0)
	src := mat(2, 2, 1, 1, 2, 2)

	require.NoError(t, SetRows(dst, src, []int{2, 0}))
	assert.Equal(t, []float64{2, 2, 0, 0, 1, 1}, dst.Data().([]float64))
}

func TestSetRowsShapeMismatch(t *testing.T) {
	dst := mat(3, 2, 0, 0, 0, 0, 0, 0)
	src := mat(1, 3, 1, 2, 3)

	err := SetRows(dst, src, []int{0})
	require.ErrorIs(t, err, ErrShape)
}

func TestConcatRows(t *testing.T) {
	a := mat(2, 2, 1, 1, 2, 2)
	b := mat(1, 2, 3, 3)

	got, err := ConcatRows(a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float64{1, 1, 2, 2, 3, 3}, got.Data().([]float64))
}

func TestSegmentSum(t *testing.T) {
	msgs := mat(4, 2, 1, 1, 2, 2, 3, 3, 4, 4)

	got, err := SegmentSum(msgs, []int{0, 2, 0, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	// Segment 1 has no messages and holds the additive identity.
	assert.Equal(t, []float64{4, 4, 0, 0, 6, 6}, got.Data().([]float64))
}

func TestSegmentMax(t *testing.T) {
	msgs := mat(4, 1, -3, -1, -2, 5)

	got, err := SegmentMax(msgs, []int{0, 0, 1, 1}, 2)
	require.NoError(t, err)
	// Negative maxima survive: the first message seeds the segment
	// rather than competing with a zero identity.
	assert.Equal(t, []float64{-1, 5}, got.Data().([]float64))
}

func TestSegmentReduceErrors(t *testing.T) {
	msgs := mat(2, 1, 1, 2)

	_, err := SegmentSum(msgs, []int{0}, 2)
	require.ErrorIs(t, err, ErrShape)

	_, err = SegmentSum(msgs, []int{0, 5}, 2)
	require.ErrorIs(t, err, ErrRowIndex)
}

func TestRowBinary(t *testing.T) {
	a := mat(2, 2, 4, 6, 8, 10)

	tests := []struct {
		name string
		fn   func(a, b *tensor.Dense) (*tensor.Dense, error)
		b    *tensor.Dense
		want []float64
	}{
		{
			name: "mul exact",
			fn:   RowMul,
			b:    mat(2, 2, 1, 2, 3, 4),
			want: []float64{4, 12, 24, 40},
		},
		{
			name: "mul broadcast scalar row",
			fn:   RowMul,
			b:    mat(2, 1, 2, 10),
			want: []float64{8, 12, 80, 100},
		},
		{
			name: "sub broadcast",
			fn:   RowSub,
			b:    mat(2, 1, 1, 2),
			want: []float64{3, 5, 6, 8},
		},
		{
			name: "div broadcast",
			fn:   RowDiv,
			b:    mat(2, 1, 2, 2),
			want: []float64{2, 3, 4, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Data().([]float64))
		})
	}
}

func TestRowBinaryShapeErrors(t *testing.T) {
	a := mat(2, 2, 1, 2, 3, 4)

	_, err := RowMul(a, mat(3, 2, 0, 0, 0, 0, 0, 0))
	require.ErrorIs(t, err, ErrShape)

	_, err = RowMul(a, mat(2, 3, 0, 0, 0, 0, 0, 0))
	require.ErrorIs(t, err, ErrShape)
}

func TestRowDot(t *testing.T) {
	a := mat(2, 3, 1, 2, 3, 0, 0, 1)
	b := mat(2, 3, 4, 5, 6, 1, 1, 7)

	got, err := RowDot(a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, got.Shape())
	assert.Equal(t, []float64{32, 7}, got.Data().([]float64))
}

func TestRowL2Normalize(t *testing.T) {
	src := mat(3, 2, 3, 4, 0, 0, 0, 2)

	got, err := RowL2Normalize(src)
	require.NoError(t, err)
	out := got.Data().([]float64)
	assert.InDelta(t, 0.6, out[0], 1e-12)
	assert.InDelta(t, 0.8, out[1], 1e-12)
	// The zero row stays zero instead of dividing by its norm.
	assert.Equal(t, []float64{0, 0}, out[2:4])
	assert.Equal(t, []float64{0, 1}, out[4:6])
}

func TestExpAndScale(t *testing.T) {
	src := mat(1, 2, 0, 1)

	e, err := Exp(src)
	require.NoError(t, err)
	out := e.Data().([]float64)
	assert.InDelta(t, 1.0, out[0], 1e-12)
	assert.InDelta(t, 2.718281828459045, out[1], 1e-12)

	s, err := Scale(src, -2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -2}, s.Data().([]float64))
}

func TestGatherLargeParallel(t *testing.T) {
	// Cross the chunking threshold so the parallel path runs.
	const rows, cols = 300, 256
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = float64(i / cols)
	}
	src := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))

	idx := make([]int, rows)
	for i := range idx {
		idx[i] = rows - 1 - i
	}
	got, err := Gather(src, idx)
	require.NoError(t, err)
	out := got.Data().([]float64)
	for i := 0; i < rows; i++ {
		require.Equal(t, float64(rows-1-i), out[i*cols])
	}
}
