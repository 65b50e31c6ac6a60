// Package tensorx supplies the sparse row kernels the dense tensor
// collaborator does not ship: gather by row-id list, scatter reductions
// grouped by a segment index, and rowwise arithmetic with trailing-axis
// broadcast.
//
// Every kernel treats the leading axis as the batch (entity) axis and
// returns a freshly allocated tensor; stored feature tensors are never
// mutated in place. Large batches are chunked across goroutines with
// disjoint output rows, so results are bit-identical regardless of the
// worker count.
package tensorx

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

var (
	// ErrDtype is returned when a kernel receives a tensor whose element
	// type it does not support.
	ErrDtype = errors.New("tensorx: unsupported dtype")

	// ErrShape is returned when operand shapes are incompatible.
	ErrShape = errors.New("tensorx: incompatible shapes")

	// ErrRowIndex is returned when a row index is outside [0, rows).
	ErrRowIndex = errors.New("tensorx: row index out of range")

	// ErrNoRows is returned when a kernel is asked to produce an empty
	// batch, which the dense collaborator cannot represent.
	ErrNoRows = errors.New("tensorx: empty row set")
)

// parallelElems is the element-count threshold above which row loops are
// chunked across GOMAXPROCS goroutines.
const parallelElems = 1 << 16

type float interface {
	~float32 | ~float64
}

// RowSize returns the number of elements in one batch row of shape s.
func RowSize(s tensor.Shape) int {
	rs := 1
	for _, d := range s[1:] {
		rs *= d
	}
	return rs
}

func batchShape(rows int, per tensor.Shape) tensor.Shape {
	out := make(tensor.Shape, 0, len(per)+1)
	out = append(out, rows)
	out = append(out, per...)
	return out
}

// NewRows allocates a zeroed tensor of rows batch rows with the per-row
// shape and dtype of proto.
func NewRows(rows int, dt tensor.Dtype, perRow tensor.Shape) (*tensor.Dense, error) {
	if rows <= 0 {
		return nil, ErrNoRows
	}
	return tensor.New(tensor.Of(dt), tensor.WithShape(batchShape(rows, perRow)...)), nil
}

// Gather copies the given rows of t, in the order given, into a new
// tensor of len(rows) batch rows.
func Gather(t *tensor.Dense, rows []int) (*tensor.Dense, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	shape := t.Shape()
	rs := RowSize(shape)
	for _, r := range rows {
		if r < 0 || r >= shape[0] {
			return nil, fmt.Errorf("%w: %d of %d", ErrRowIndex, r, shape[0])
		}
	}
	out := tensor.New(tensor.Of(t.Dtype()), tensor.WithShape(batchShape(len(rows), shape[1:])...))
	switch src := t.Data().(type) {
	case []float32:
		gatherRows(src, out.Data().([]float32), rows, rs)
	case []float64:
		gatherRows(src, out.Data().([]float64), rows, rs)
	case []int32:
		gatherRows(src, out.Data().([]int32), rows, rs)
	case []int64:
		gatherRows(src, out.Data().([]int64), rows, rs)
	case []int:
		gatherRows(src, out.Data().([]int), rows, rs)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, t.Dtype())
	}
	return out, nil
}

// SetRows writes src row i into dst row rows[i]. dst and src must share
// dtype and per-row shape; src must have exactly len(rows) batch rows.
func SetRows(dst, src *tensor.Dense, rows []int) error {
	if dst.Dtype() != src.Dtype() {
		return fmt.Errorf("%w: %v vs %v", ErrDtype, dst.Dtype(), src.Dtype())
	}
	ds, ss := dst.Shape(), src.Shape()
	rs := RowSize(ds)
	if RowSize(ss) != rs || ss[0] != len(rows) {
		return fmt.Errorf("%w: writing %v rows into %v via %d indices", ErrShape, ss, ds, len(rows))
	}
	for _, r := range rows {
		if r < 0 || r >= ds[0] {
			return fmt.Errorf("%w: %d of %d", ErrRowIndex, r, ds[0])
		}
	}
	switch d := dst.Data().(type) {
	case []float32:
		scatterRows(src.Data().([]float32), d, rows, rs)
	case []float64:
		scatterRows(src.Data().([]float64), d, rows, rs)
	case []int32:
		scatterRows(src.Data().([]int32), d, rows, rs)
	case []int64:
		scatterRows(src.Data().([]int64), d, rows, rs)
	case []int:
		scatterRows(src.Data().([]int), d, rows, rs)
	default:
		return fmt.Errorf("%w: %v", ErrDtype, dst.Dtype())
	}
	return nil
}

// ConcatRows stacks b below a along the batch axis.
func ConcatRows(a, b *tensor.Dense) (*tensor.Dense, error) {
	if a.Dtype() != b.Dtype() {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDtype, a.Dtype(), b.Dtype())
	}
	as, bs := a.Shape(), b.Shape()
	rs := RowSize(as)
	if RowSize(bs) != rs {
		return nil, fmt.Errorf("%w: %v below %v", ErrShape, bs, as)
	}
	out := tensor.New(tensor.Of(a.Dtype()), tensor.WithShape(batchShape(as[0]+bs[0], as[1:])...))
	switch d := out.Data().(type) {
	case []float32:
		concatRows(a.Data().([]float32), b.Data().([]float32), d)
	case []float64:
		concatRows(a.Data().([]float64), b.Data().([]float64), d)
	case []int32:
		concatRows(a.Data().([]int32), b.Data().([]int32), d)
	case []int64:
		concatRows(a.Data().([]int64), b.Data().([]int64), d)
	case []int:
		concatRows(a.Data().([]int), b.Data().([]int), d)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, a.Dtype())
	}
	return out, nil
}

func gatherRows[T any](src, dst []T, rows []int, rs int) {
	if len(rows)*rs >= parallelElems {
		chunked(len(rows), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				copy(dst[i*rs:(i+1)*rs], src[rows[i]*rs:(rows[i]+1)*rs])
			}
		})
		return
	}
	for i, r := range rows {
		copy(dst[i*rs:(i+1)*rs], src[r*rs:(r+1)*rs])
	}
}

func scatterRows[T any](src, dst []T, rows []int, rs int) {
	for i, r := range rows {
		copy(dst[r*rs:(r+1)*rs], src[i*rs:(i+1)*rs])
	}
}

func concatRows[T any](a, b, dst []T) {
	copy(dst, a)
	copy(dst[len(a):], b)
}

// chunked splits [0, n) into GOMAXPROCS contiguous spans and runs fn on
// each concurrently. Spans are disjoint, so fn may write freely.
func chunked(n int, fn func(lo, hi int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	var g errgroup.Group
	span := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += span {
		hi := lo + span
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// SegmentSum sums msgs rows grouped by seg: out[seg[i]] += msgs[i].
// All n output rows are materialized; segments with no contributing rows
// hold zero, the additive identity.
func SegmentSum(msgs *tensor.Dense, seg []int, n int) (*tensor.Dense, error) {
	return segmentReduce(msgs, seg, n, reduceSum)
}

// SegmentMax takes the rowwise maximum of msgs grouped by seg. All n
// output rows are materialized; segments with no contributing rows hold
// zero (callers that care must not read those rows).
func SegmentMax(msgs *tensor.Dense, seg []int, n int) (*tensor.Dense, error) {
	return segmentReduce(msgs, seg, n, reduceMax)
}

type reduceKind int

const (
	reduceSum reduceKind = iota
	reduceMax
)

func segmentReduce(msgs *tensor.Dense, seg []int, n int, kind reduceKind) (*tensor.Dense, error) {
	shape := msgs.Shape()
	if shape[0] != len(seg) {
		return nil, fmt.Errorf("%w: %d messages, %d segment ids", ErrShape, shape[0], len(seg))
	}
	if n <= 0 {
		return nil, ErrNoRows
	}
	for _, s := range seg {
		if s < 0 || s >= n {
			return nil, fmt.Errorf("%w: segment %d of %d", ErrRowIndex, s, n)
		}
	}
	rs := RowSize(shape)
	out := tensor.New(tensor.Of(msgs.Dtype()), tensor.WithShape(batchShape(n, shape[1:])...))
	switch src := msgs.Data().(type) {
	case []float32:
		segmentReduceRows(src, out.Data().([]float32), seg, n, rs, kind)
	case []float64:
		segmentReduceRows(src, out.Data().([]float64), seg, n, rs, kind)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, msgs.Dtype())
	}
	return out, nil
}

// segmentReduceRows accumulates sequentially in message order: the addend
// set per segment is fixed by the edge ordering, keeping reductions
// deterministic for a given graph.
func segmentReduceRows[T float](src, dst []T, seg []int, n, rs int, kind reduceKind) {
	seen := make([]bool, n)
	for i, s := range seg {
		in := src[i*rs : (i+1)*rs]
		out := dst[s*rs : (s+1)*rs]
		switch kind {
		case reduceSum:
			for j, v := range in {
				out[j] += v
			}
		case reduceMax:
			if !seen[s] {
				copy(out, in)
				break
			}
			for j, v := range in {
				if v > out[j] {
					out[j] = v
				}
			}
		}
		seen[s] = true
	}
}
