package fluxgraph

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/codec"
	"github.com/fluxgraph/fluxgraph/feature"
	"github.com/fluxgraph/fluxgraph/model"
)

// Snapshot format: a little-endian header identifying version, codec
// and compression, followed by a (possibly compressed) payload of
// structure slabs and one section per feature column. Persistence binds
// to io.Writer/io.Reader only; where the bytes live is the caller's
// concern.
const (
	// snapshotMagic identifies fluxgraph snapshots (ASCII "FLXG").
	snapshotMagic = 0x464C5847
	// snapshotVersion is the current format version.
	snapshotVersion = 0x00010000
)

const flagMultigraph = 1 << 0

var (
	// ErrInvalidMagic is returned when loading bytes that are not a
	// fluxgraph snapshot.
	ErrInvalidMagic = errors.New("fluxgraph: invalid snapshot magic")

	// ErrInvalidVersion is returned for snapshot versions this build
	// cannot read.
	ErrInvalidVersion = errors.New("fluxgraph: unsupported snapshot version")

	// ErrUnknownCodec is returned when the header names a codec this
	// build does not ship.
	ErrUnknownCodec = errors.New("fluxgraph: unknown snapshot codec")

	// ErrUnknownCompression is returned for unrecognized compression
	// bytes.
	ErrUnknownCompression = errors.New("fluxgraph: unknown snapshot compression")

	// ErrSnapshotDtype is returned when a feature column's dtype has no
	// stable serialization.
	ErrSnapshotDtype = errors.New("fluxgraph: dtype not serializable")

	// ErrSnapshotCorrupt is returned when a payload section disagrees
	// with its declared metadata.
	ErrSnapshotCorrupt = errors.New("fluxgraph: corrupt snapshot")
)

// Compression selects the payload compression of a snapshot.
type Compression uint8

const (
	// CompressionNone stores the payload raw.
	CompressionNone Compression = iota
	// CompressionZstd compresses with zstd: the default, best ratio.
	CompressionZstd
	// CompressionLZ4 compresses with lz4: faster, lighter ratio.
	CompressionLZ4
)

type snapshotOptions struct {
	compression Compression
	codec       codec.Codec
}

// SnapshotOption configures Save and Load.
type SnapshotOption func(*snapshotOptions)

// WithCompression selects the payload compression for Save.
func WithCompression(c Compression) SnapshotOption {
	return func(o *snapshotOptions) { o.compression = c }
}

// WithSnapshotCodec selects the metadata codec for Save. Load resolves
// the codec from the header instead.
func WithSnapshotCodec(c codec.Codec) SnapshotOption {
	return func(o *snapshotOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

type snapshotHeader struct {
	Magic       uint32
	Version     uint32
	Flags       uint8
	Compression uint8
	CodecLen    uint16
}

type schemeRecord struct {
	Shape []int
	Dtype string
}

// Save writes the graph — structure, every feature column, and the
// explicit-row sets — to w. The payload is zstd-compressed unless
// configured otherwise.
func (g *Graph) Save(w io.Writer, opts ...SnapshotOption) (err error) {
	start := time.Now()
	defer func() { g.metrics.RecordSnapshotSave(time.Since(start), err) }()

	o := snapshotOptions{compression: CompressionZstd, codec: codec.Default}
	for _, opt := range opts {
		opt(&o)
	}

	var flags uint8
	if g.multigraph {
		flags |= flagMultigraph
	}
	name := []byte(o.codec.Name())
	hdr := snapshotHeader{
		Magic:       snapshotMagic,
		Version:     snapshotVersion,
		Flags:       flags,
		Compression: uint8(o.compression),
		CodecLen:    uint16(len(name)),
	}
	if err = binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err = w.Write(name); err != nil {
		return err
	}

	payload, closeCompressor, err := compressWriter(w, o.compression)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(payload)
	if err = g.writePayload(bw, o.codec); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = closeCompressor(); err != nil {
		return err
	}
	g.logger.Info("saved snapshot",
		"nodes", g.numNodes, "edges", len(g.src), "codec", o.codec.Name())
	return nil
}

func compressWriter(w io.Writer, c Compression) (io.Writer, func() error, error) {
	switch c {
	case CompressionNone:
		return w, func() error { return nil }, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, err
		}
		return enc, enc.Close, nil
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		return lw, lw.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

func decompressReader(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case CompressionNone:
		return r, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

func (g *Graph) writePayload(w io.Writer, c codec.Codec) error {
	counts := []uint64{uint64(g.numNodes), uint64(len(g.src))}
	if err := binary.Write(w, binary.LittleEndian, counts); err != nil {
		return err
	}
	if err := writeIDSlab(w, g.src); err != nil {
		return err
	}
	if err := writeIDSlab(w, g.dst); err != nil {
		return err
	}
	if err := writeStore(w, c, g.ndata); err != nil {
		return err
	}
	return writeStore(w, c, g.edata)
}

func writeIDSlab(w io.Writer, ids []model.NodeID) error {
	raw := make([]uint32, len(ids))
	for i, id := range ids {
		raw[i] = uint32(id)
	}
	return binary.Write(w, binary.LittleEndian, raw)
}

func writeStore(w io.Writer, c codec.Codec, s *feature.Store) error {
	keys := s.Keys()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
		return err
	}
	schemes := s.Schemes()
	for _, key := range keys {
		name, err := dtypeName(schemes[key].Dtype)
		if err != nil {
			return fmt.Errorf("%w: key %q", err, key)
		}
		meta, err := c.Marshal(schemeRecord{Shape: schemes[key].Shape, Dtype: name})
		if err != nil {
			return err
		}
		explicit, err := s.ExplicitRows(key)
		if err != nil {
			return err
		}
		bm, err := explicit.ToBytes()
		if err != nil {
			return err
		}
		col, err := s.Get(key)
		if err != nil {
			return err
		}
		if err := writeBytes(w, []byte(key)); err != nil {
			return err
		}
		if err := writeBytes(w, meta); err != nil {
			return err
		}
		if err := writeBytes(w, bm); err != nil {
			return err
		}
		if err := writeColumnData(w, col); err != nil {
			return err
		}
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeColumnData(w io.Writer, t *tensor.Dense) error {
	switch data := t.Data().(type) {
	case []float32:
		return writeSlab(w, data)
	case []float64:
		return writeSlab(w, data)
	case []int32:
		return writeSlab(w, data)
	case []int64:
		return writeSlab(w, data)
	default:
		return fmt.Errorf("%w: %v", ErrSnapshotDtype, t.Dtype())
	}
}

func writeSlab[T any](w io.Writer, data []T) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// Load reads a snapshot written by Save and reconstructs the graph.
// The multigraph flag comes from the header; remaining options
// (initializers, logger, metrics) apply to the new graph.
func Load(r io.Reader, opts ...Option) (*Graph, error) {
	start := time.Now()

	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Magic != snapshotMagic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, hdr.Version)
	}
	name := make([]byte, hdr.CodecLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	payload, err := decompressReader(r, Compression(hdr.Compression))
	if err != nil {
		return nil, err
	}

	if hdr.Flags&flagMultigraph != 0 {
		opts = append(opts, WithMultigraph())
	}
	g := New(opts...)
	if err := g.readPayload(bufio.NewReader(payload), c); err != nil {
		return nil, err
	}
	g.metrics.RecordSnapshotLoad(time.Since(start), nil)
	g.logger.Info("loaded snapshot", "nodes", g.numNodes, "edges", len(g.src))
	return g, nil
}

func (g *Graph) readPayload(r io.Reader, c codec.Codec) error {
	counts := make([]uint64, 2)
	if err := binary.Read(r, binary.LittleEndian, counts); err != nil {
		return err
	}
	if _, err := g.AddNodes(int(counts[0])); err != nil {
		return err
	}
	numEdges := int(counts[1])
	us, err := readIDSlab(r, numEdges)
	if err != nil {
		return err
	}
	vs, err := readIDSlab(r, numEdges)
	if err != nil {
		return err
	}
	if numEdges > 0 {
		if _, err := g.AddEdges(us, vs); err != nil {
			return err
		}
	}
	if err := readStore(r, c, g.ndata); err != nil {
		return err
	}
	return readStore(r, c, g.edata)
}

func readIDSlab(r io.Reader, n int) ([]model.NodeID, error) {
	raw := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, err
	}
	ids := make([]model.NodeID, n)
	for i, v := range raw {
		ids[i] = model.NodeID(v)
	}
	return ids, nil
}

func readStore(r io.Reader, c codec.Codec, s *feature.Store) error {
	var keys uint32
	if err := binary.Read(r, binary.LittleEndian, &keys); err != nil {
		return err
	}
	for i := 0; i < int(keys); i++ {
		key, err := readBytes(r)
		if err != nil {
			return err
		}
		meta, err := readBytes(r)
		if err != nil {
			return err
		}
		var rec schemeRecord
		if err := c.Unmarshal(meta, &rec); err != nil {
			return err
		}
		bmBytes, err := readBytes(r)
		if err != nil {
			return err
		}
		explicit := roaring.New()
		if _, err := explicit.FromUnsafeBytes(bmBytes); err != nil {
			return err
		}
		col, err := readColumnData(r, s.Len(), rec)
		if err != nil {
			return fmt.Errorf("fluxgraph: load column %q: %w", key, err)
		}
		if err := s.Put(string(key), col, explicit); err != nil {
			return err
		}
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readColumnData(r io.Reader, rows int, rec schemeRecord) (*tensor.Dense, error) {
	dt, err := dtypeByName(rec.Dtype)
	if err != nil {
		return nil, err
	}
	shape := append([]int{rows}, rec.Shape...)
	var backing interface{}
	var elems int
	switch dt {
	case tensor.Float32:
		var s []float32
		s, err = readSlab[float32](r)
		backing, elems = s, len(s)
	case tensor.Float64:
		var s []float64
		s, err = readSlab[float64](r)
		backing, elems = s, len(s)
	case tensor.Int32:
		var s []int32
		s, err = readSlab[int32](r)
		backing, elems = s, len(s)
	case tensor.Int64:
		var s []int64
		s, err = readSlab[int64](r)
		backing, elems = s, len(s)
	}
	if err != nil {
		return nil, err
	}
	// tensor.New panics when backing and shape disagree; a corrupted
	// element count must surface as an error instead.
	want := rows
	for _, d := range rec.Shape {
		want *= d
	}
	if elems != want {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrSnapshotCorrupt, elems, shape)
	}
	return tensor.New(tensor.Of(dt), tensor.WithShape(shape...), tensor.WithBacking(backing)), nil
}

func readSlab[T any](r io.Reader) ([]T, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	data := make([]T, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, err
	}
	return data, nil
}

func dtypeName(dt tensor.Dtype) (string, error) {
	switch dt {
	case tensor.Float32:
		return "float32", nil
	case tensor.Float64:
		return "float64", nil
	case tensor.Int32:
		return "int32", nil
	case tensor.Int64:
		return "int64", nil
	default:
		return "", fmt.Errorf("%w: %v", ErrSnapshotDtype, dt)
	}
}

func dtypeByName(name string) (tensor.Dtype, error) {
	switch name {
	case "float32":
		return tensor.Float32, nil
	case "float64":
		return tensor.Float64, nil
	case "int32":
		return tensor.Int32, nil
	case "int64":
		return tensor.Int64, nil
	default:
		return tensor.Dtype{}, fmt.Errorf("%w: %q", ErrSnapshotDtype, name)
	}
}
