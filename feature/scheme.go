package feature

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Scheme is the (shape, dtype) contract associated with a feature key.
// Shape excludes the leading batch axis. Every tensor stored under a key
// must match its scheme exactly; the scheme can only be replaced by a
// write that covers the whole entity set.
type Scheme struct {
	Shape tensor.Shape
	Dtype tensor.Dtype
}

// InferScheme derives the per-row scheme of a batched tensor.
func InferScheme(t *tensor.Dense) Scheme {
	return Scheme{
		Shape: t.Shape()[1:].Clone(),
		Dtype: t.Dtype(),
	}
}

// Matches reports whether the batched tensor t conforms to s.
func (s Scheme) Matches(t *tensor.Dense) bool {
	return t.Dtype() == s.Dtype && t.Shape()[1:].Eq(s.Shape)
}

// Equal reports whether two schemes are interchangeable.
func (s Scheme) Equal(o Scheme) bool {
	return s.Dtype == o.Dtype && s.Shape.Eq(o.Shape)
}

func (s Scheme) String() string {
	return fmt.Sprintf("{shape=%v dtype=%v}", s.Shape, s.Dtype)
}

// Initializer produces the default value for feature rows that were
// never explicitly written: the full batched tensor for rows entities of
// the given scheme. It runs whenever a key is created by a partial write
// or an existing key must grow with the entity set.
type Initializer func(rows int, s Scheme) (*tensor.Dense, error)

// Zeros is the default Initializer: zero-filled rows.
func Zeros(rows int, s Scheme) (*tensor.Dense, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrEmptyStore, rows)
	}
	shape := make(tensor.Shape, 0, len(s.Shape)+1)
	shape = append(shape, rows)
	shape = append(shape, s.Shape...)
	return tensor.New(tensor.Of(s.Dtype), tensor.WithShape(shape...)), nil
}

// Constant returns an Initializer filling every element with v,
// converted to the column's dtype.
func Constant(v float64) Initializer {
	return func(rows int, s Scheme) (*tensor.Dense, error) {
		t, err := Zeros(rows, s)
		if err != nil {
			return nil, err
		}
		var fill interface{}
		switch s.Dtype {
		case tensor.Float32:
			fill = float32(v)
		case tensor.Float64:
			fill = v
		case tensor.Int:
			fill = int(v)
		case tensor.Int32:
			fill = int32(v)
		case tensor.Int64:
			fill = int64(v)
		default:
			return nil, fmt.Errorf("feature: constant initializer: unsupported dtype %v", s.Dtype)
		}
		if err := t.Memset(fill); err != nil {
			return nil, err
		}
		return t, nil
	}
}
