// Package feature implements keyed, scheme-checked storage of batched
// feature tensors for one entity class (nodes or edges).
//
// Every key maps to a single tensor whose leading axis always equals the
// store's entity count: partial writes never shrink a column, growing
// the entity set eagerly appends default-initialized rows to every
// column, and rows that were never written explicitly hold the store's
// initializer value (zero unless configured otherwise).
//
// Columns are immutable once stored: mutations replace the column value,
// copying on write for partial updates. That makes Snapshot and Restore
// O(keys) map copies, which is what keeps scoped computations cheap.
package feature

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/internal/tensorx"
)

var (
	// ErrKeyNotFound is returned when reading a key that was never set.
	ErrKeyNotFound = errors.New("feature: key not found")

	// ErrEmptyStore is returned when writing to a store with no entities.
	ErrEmptyStore = errors.New("feature: store has no entities")

	// ErrShrink is returned when an operation would reduce the entity
	// count. Entities are never removed; ids index batched tensors.
	ErrShrink = errors.New("feature: entity count may only grow")

	// ErrRowCount is returned when a tensor's batch size disagrees with
	// the rows it is meant to cover.
	ErrRowCount = errors.New("feature: row count mismatch")

	// ErrInitializer is returned when a custom Initializer produces a
	// tensor whose row count or scheme does not match the request.
	ErrInitializer = errors.New("feature: initializer output mismatch")
)

// SchemeMismatchError reports a partial write whose per-row shape or
// dtype conflicts with the key's established scheme.
type SchemeMismatchError struct {
	Key  string
	Want Scheme
	Got  Scheme
}

func (e *SchemeMismatchError) Error() string {
	return fmt.Sprintf("feature: scheme mismatch on %q: have %v, got %v", e.Key, e.Want, e.Got)
}

// column is one key's storage. Immutable after insertion into the store
// map; any mutation builds a replacement.
type column struct {
	data     *tensor.Dense
	scheme   Scheme
	explicit *roaring.Bitmap // rows written by callers, vs default-filled
}

// Store holds all feature columns for one entity class.
//
// Not safe for concurrent use; the owning graph documents external
// synchronization as the caller's responsibility.
type Store struct {
	length int
	init   Initializer
	cols   map[string]*column
}

// NewStore creates an empty store for length entities. A nil init
// defaults to Zeros.
func NewStore(length int, init Initializer) *Store {
	if init == nil {
		init = Zeros
	}
	return &Store{
		length: length,
		init:   init,
		cols:   make(map[string]*column),
	}
}

// Len returns the entity count every column is aligned to.
func (s *Store) Len() int { return s.length }

// defaultRows runs the configured Initializer and checks its output
// against the request. Custom initializers are caller code; a wrong row
// count or scheme would silently misalign the column.
func (s *Store) defaultRows(rows int, scheme Scheme) (*tensor.Dense, error) {
	t, err := s.init(rows, scheme)
	if err != nil {
		return nil, err
	}
	if got := t.Shape()[0]; got != rows {
		return nil, fmt.Errorf("%w: %d rows, want %d", ErrInitializer, got, rows)
	}
	if got := InferScheme(t); !got.Equal(scheme) {
		return nil, fmt.Errorf("%w: scheme %v, want %v", ErrInitializer, got, scheme)
	}
	return t, nil
}

// Keys returns all feature keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.cols))
	for k := range s.cols {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Schemes returns the scheme of every key.
func (s *Store) Schemes() map[string]Scheme {
	out := make(map[string]Scheme, len(s.cols))
	for k, c := range s.cols {
		out[k] = c.scheme
	}
	return out
}

// Set writes t under key. With no rows given the write covers the whole
// entity set: t must have exactly Len batch rows, and its per-row scheme
// becomes the key's scheme, replacing any previous one.
//
// With rows given, t must have len(rows) batch rows. A row list that
// touches every entity still counts as full coverage and may replace
// the scheme; a proper subset must match the key's existing scheme,
// else *SchemeMismatchError. The first partial write to a new key
// creates the full column with the store's initializer before
// overwriting the given rows.
//
// The store takes ownership of t on a full write; callers must not
// mutate it afterwards.
func (s *Store) Set(key string, t *tensor.Dense, rows ...int) error {
	if s.length == 0 {
		return fmt.Errorf("%w: set %q", ErrEmptyStore, key)
	}
	if len(rows) == 0 {
		return s.setAll(key, t)
	}
	return s.setRows(key, t, rows)
}

func (s *Store) setAll(key string, t *tensor.Dense) error {
	if got := t.Shape()[0]; got != s.length {
		return fmt.Errorf("%w: key %q: %d rows for %d entities", ErrRowCount, key, got, s.length)
	}
	explicit := roaring.New()
	explicit.AddRange(0, uint64(s.length))
	s.cols[key] = &column{
		data:     t,
		scheme:   InferScheme(t),
		explicit: explicit,
	}
	return nil
}

func (s *Store) setRows(key string, t *tensor.Dense, rows []int) error {
	if got := t.Shape()[0]; got != len(rows) {
		return fmt.Errorf("%w: key %q: %d rows for %d indices", ErrRowCount, key, got, len(rows))
	}
	covered := make([]bool, s.length)
	distinct := 0
	for _, r := range rows {
		if r < 0 || r >= s.length {
			return fmt.Errorf("%w: key %q: row %d of %d", ErrRowCount, key, r, s.length)
		}
		if !covered[r] {
			covered[r] = true
			distinct++
		}
	}
	scheme := InferScheme(t)

	// An id list touching every entity is a full-coverage write: it may
	// establish or replace the scheme, like Set without rows.
	if distinct == s.length {
		data, err := tensorx.NewRows(s.length, t.Dtype(), scheme.Shape)
		if err != nil {
			return fmt.Errorf("feature: set %q: %w", key, err)
		}
		if err := tensorx.SetRows(data, t, rows); err != nil {
			return fmt.Errorf("feature: set %q: %w", key, err)
		}
		explicit := roaring.New()
		explicit.AddRange(0, uint64(s.length))
		s.cols[key] = &column{data: data, scheme: scheme, explicit: explicit}
		return nil
	}

	prev, ok := s.cols[key]
	var data *tensor.Dense
	var explicit *roaring.Bitmap
	if ok {
		if !prev.scheme.Equal(scheme) {
			return &SchemeMismatchError{Key: key, Want: prev.scheme, Got: scheme}
		}
		data = prev.data.Clone().(*tensor.Dense)
		explicit = prev.explicit.Clone()
	} else {
		// First write for this key: materialize the full column with
		// default rows, then overwrite the requested ones.
		full, err := s.defaultRows(s.length, scheme)
		if err != nil {
			return fmt.Errorf("feature: initialize %q: %w", key, err)
		}
		data = full
		explicit = roaring.New()
	}

	if err := tensorx.SetRows(data, t, rows); err != nil {
		return fmt.Errorf("feature: set %q: %w", key, err)
	}
	for _, r := range rows {
		explicit.Add(uint32(r))
	}
	s.cols[key] = &column{data: data, scheme: scheme, explicit: explicit}
	return nil
}

// Get returns the rows stored under key, in the order requested. With no
// rows given the full column is returned; the result aliases internal
// storage and must be treated as read-only.
func (s *Store) Get(key string, rows ...int) (*tensor.Dense, error) {
	c, ok := s.cols[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if len(rows) == 0 {
		return c.data, nil
	}
	out, err := tensorx.Gather(c.data, rows)
	if err != nil {
		return nil, fmt.Errorf("feature: get %q: %w", key, err)
	}
	return out, nil
}

// Remove drops key entirely.
func (s *Store) Remove(key string) error {
	if _, ok := s.cols[key]; !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	delete(s.cols, key)
	return nil
}

// Pop returns the full column for key and drops it, the usual way to
// collect a staged computation result.
func (s *Store) Pop(key string) (*tensor.Dense, error) {
	c, ok := s.cols[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	delete(s.cols, key)
	return c.data, nil
}

// ExplicitRows returns the set of rows that were written by callers, as
// opposed to default-filled. The result is a copy.
func (s *Store) ExplicitRows(key string) (*roaring.Bitmap, error) {
	c, ok := s.cols[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return c.explicit.Clone(), nil
}

// Grow appends n default-initialized rows to every column, keeping all
// columns aligned to the new entity count. Alignment is eager: after
// Grow returns, every Get sees the new count.
func (s *Store) Grow(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: grow by %d", ErrShrink, n)
	}
	if n == 0 {
		return nil
	}
	for key, c := range s.cols {
		tail, err := s.defaultRows(n, c.scheme)
		if err != nil {
			return fmt.Errorf("feature: grow %q: %w", key, err)
		}
		data, err := tensorx.ConcatRows(c.data, tail)
		if err != nil {
			return fmt.Errorf("feature: grow %q: %w", key, err)
		}
		s.cols[key] = &column{data: data, scheme: c.scheme, explicit: c.explicit.Clone()}
	}
	s.length += n
	return nil
}

// Put installs a fully materialized column together with its explicit
// row set. It exists for snapshot restore paths; t must cover the whole
// entity set.
func (s *Store) Put(key string, t *tensor.Dense, explicit *roaring.Bitmap) error {
	if got := t.Shape()[0]; got != s.length {
		return fmt.Errorf("%w: key %q: %d rows for %d entities", ErrRowCount, key, got, s.length)
	}
	if explicit == nil {
		explicit = roaring.New()
	}
	s.cols[key] = &column{
		data:     t,
		scheme:   InferScheme(t),
		explicit: explicit.Clone(),
	}
	return nil
}

// Clear resets the store to zero entities and no keys.
func (s *Store) Clear() {
	s.length = 0
	s.cols = make(map[string]*column)
}

// State is an opaque snapshot of the store, captured by Snapshot and
// reinstated by Restore. Because columns are immutable values, a
// snapshot is a shallow map copy and snapshots nest freely.
type State struct {
	length int
	cols   map[string]*column
}

// Snapshot captures the current columns and entity count.
func (s *Store) Snapshot() State {
	cols := make(map[string]*column, len(s.cols))
	for k, c := range s.cols {
		cols[k] = c
	}
	return State{length: s.length, cols: cols}
}

// Restore reinstates a snapshot, discarding every mutation made since it
// was captured. The snapshot itself stays valid and may be restored
// again.
func (s *Store) Restore(st State) {
	cols := make(map[string]*column, len(st.cols))
	for k, c := range st.cols {
		cols[k] = c
	}
	s.length = st.length
	s.cols = cols
}
