package tensorx

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// Rowwise float kernels. The right operand may either match the left
// operand's shape exactly or carry a single element per row, in which
// case that element is broadcast across the row (the shape produced by
// scalar edge weights and per-row dot products).

// RowMul returns a * b with trailing-axis broadcast of b.
func RowMul(a, b *tensor.Dense) (*tensor.Dense, error) {
	return rowBinary(a, b, opMul)
}

// RowSub returns a - b with trailing-axis broadcast of b.
func RowSub(a, b *tensor.Dense) (*tensor.Dense, error) {
	return rowBinary(a, b, opSub)
}

// RowDiv returns a / b with trailing-axis broadcast of b.
func RowDiv(a, b *tensor.Dense) (*tensor.Dense, error) {
	return rowBinary(a, b, opDiv)
}

type binOp int

const (
	opMul binOp = iota
	opSub
	opDiv
)

func rowBinary(a, b *tensor.Dense, op binOp) (*tensor.Dense, error) {
	if a.Dtype() != b.Dtype() {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDtype, a.Dtype(), b.Dtype())
	}
	as, bs := a.Shape(), b.Shape()
	if as[0] != bs[0] {
		return nil, fmt.Errorf("%w: %d vs %d batch rows", ErrShape, as[0], bs[0])
	}
	ra, rb := RowSize(as), RowSize(bs)
	if rb != ra && rb != 1 {
		return nil, fmt.Errorf("%w: row sizes %d and %d", ErrShape, ra, rb)
	}
	out := tensor.New(tensor.Of(a.Dtype()), tensor.WithShape(as.Clone()...))
	switch av := a.Data().(type) {
	case []float32:
		rowBinaryRows(av, b.Data().([]float32), out.Data().([]float32), as[0], ra, rb, op)
	case []float64:
		rowBinaryRows(av, b.Data().([]float64), out.Data().([]float64), as[0], ra, rb, op)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, a.Dtype())
	}
	return out, nil
}

func rowBinaryRows[T float](a, b, dst []T, rows, ra, rb int, op binOp) {
	apply := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ar := a[i*ra : (i+1)*ra]
			or := dst[i*ra : (i+1)*ra]
			for j, v := range ar {
				w := b[i*rb]
				if rb == ra {
					w = b[i*rb+j]
				}
				switch op {
				case opMul:
					or[j] = v * w
				case opSub:
					or[j] = v - w
				case opDiv:
					or[j] = v / w
				}
			}
		}
	}
	if rows*ra >= parallelElems {
		chunked(rows, apply)
		return
	}
	apply(0, rows)
}

// RowDot computes the per-row dot product of a and b, returning an
// [rows, 1] tensor. Shapes must match exactly.
func RowDot(a, b *tensor.Dense) (*tensor.Dense, error) {
	if a.Dtype() != b.Dtype() {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDtype, a.Dtype(), b.Dtype())
	}
	as, bs := a.Shape(), b.Shape()
	rs := RowSize(as)
	if as[0] != bs[0] || RowSize(bs) != rs {
		return nil, fmt.Errorf("%w: %v dot %v", ErrShape, as, bs)
	}
	out := tensor.New(tensor.Of(a.Dtype()), tensor.WithShape(as[0], 1))
	switch av := a.Data().(type) {
	case []float32:
		rowDotRows(av, b.Data().([]float32), out.Data().([]float32), as[0], rs)
	case []float64:
		rowDotRows(av, b.Data().([]float64), out.Data().([]float64), as[0], rs)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, a.Dtype())
	}
	return out, nil
}

func rowDotRows[T float](a, b, dst []T, rows, rs int) {
	apply := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			var acc T
			for j := i * rs; j < (i+1)*rs; j++ {
				acc += a[j] * b[j]
			}
			dst[i] = acc
		}
	}
	if rows*rs >= parallelElems {
		chunked(rows, apply)
		return
	}
	apply(0, rows)
}

// RowL2Normalize returns t with each batch row scaled to unit L2 norm.
// Zero-norm rows are left as zero vectors rather than dividing by zero.
func RowL2Normalize(t *tensor.Dense) (*tensor.Dense, error) {
	shape := t.Shape()
	rs := RowSize(shape)
	out := tensor.New(tensor.Of(t.Dtype()), tensor.WithShape(shape.Clone()...))
	switch src := t.Data().(type) {
	case []float32:
		normalizeRows(src, out.Data().([]float32), shape[0], rs)
	case []float64:
		normalizeRows(src, out.Data().([]float64), shape[0], rs)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, t.Dtype())
	}
	return out, nil
}

func normalizeRows[T float](src, dst []T, rows, rs int) {
	apply := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := src[i*rs : (i+1)*rs]
			var norm2 float64
			for _, v := range row {
				norm2 += float64(v) * float64(v)
			}
			if norm2 == 0 {
				continue
			}
			inv := T(1 / math.Sqrt(norm2))
			for j, v := range row {
				dst[i*rs+j] = v * inv
			}
		}
	}
	if rows*rs >= parallelElems {
		chunked(rows, apply)
		return
	}
	apply(0, rows)
}

// Exp returns the elementwise exponential of t.
func Exp(t *tensor.Dense) (*tensor.Dense, error) {
	return mapElems(t, math.Exp)
}

// Scale returns t multiplied by the scalar s.
func Scale(t *tensor.Dense, s float64) (*tensor.Dense, error) {
	return mapElems(t, func(v float64) float64 { return v * s })
}

func mapElems(t *tensor.Dense, fn func(float64) float64) (*tensor.Dense, error) {
	out := tensor.New(tensor.Of(t.Dtype()), tensor.WithShape(t.Shape().Clone()...))
	switch src := t.Data().(type) {
	case []float32:
		mapRows(src, out.Data().([]float32), fn)
	case []float64:
		mapRows(src, out.Data().([]float64), fn)
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, t.Dtype())
	}
	return out, nil
}

func mapRows[T float](src, dst []T, fn func(float64) float64) {
	if len(src) >= parallelElems {
		chunked(len(src), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = T(fn(float64(src[i])))
			}
		})
		return
	}
	for i, v := range src {
		dst[i] = T(fn(float64(v)))
	}
}
