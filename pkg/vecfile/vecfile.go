// Package vecfile loads the legacy *vecs family (.fvecs/.bvecs/.ivecs/
// .hvecs — an unframed sequence of (dim uint32, payload [T; dim])
// records with T implied by the extension) and the native flat .svs
// array format (spec §6), returning row-major float32 data ready to hand
// to dataset.WrapContiguous.
//
// New code: no example repo in the retrieval pack reads this record
// shape, so the framing is read directly off spec §6 rather than
// generalized from a teacher file. Stdlib only (encoding/binary) — this
// is fixed binary framing with no parsing library to wire.
package vecfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Kind identifies which *vecs element type a file's payload records use.
type Kind int

const (
	Float32Kind Kind = iota
	ByteKind
	Int32Kind
	HalfKind
)

// KindFromExt maps a *vecs file extension (including the leading dot) to
// its element Kind.
func KindFromExt(ext string) (Kind, error) {
	switch ext {
	case ".fvecs":
		return Float32Kind, nil
	case ".bvecs":
		return ByteKind, nil
	case ".ivecs":
		return Int32Kind, nil
	case ".hvecs":
		return HalfKind, nil
	default:
		return 0, fmt.Errorf("vecfile: unrecognised vecs extension %q", ext)
	}
}

func (k Kind) elementSize() int {
	switch k {
	case ByteKind:
		return 1
	case HalfKind:
		return 2
	default:
		return 4
	}
}

// ReadVecs reads an entire *vecs file: a sequence of (dim uint32, payload
// [T; dim]) records. Every record must carry the same dim; a mismatch is
// a Schema-kind error (spec §7). Returns the flat row-major float32 data,
// the row count, and the shared dimensionality.
func ReadVecs(path string, kind Kind) (data []float32, n uint64, dims int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vecfile: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var dimBuf [4]byte
	elemSize := kind.elementSize()

	for {
		_, readErr := io.ReadFull(r, dimBuf[:])
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, 0, 0, fmt.Errorf("vecfile: reading record dim in %s: %w", path, readErr)
		}
		dim := int(binary.LittleEndian.Uint32(dimBuf[:]))
		if dims == 0 {
			dims = dim
		} else if dim != dims {
			return nil, 0, 0, fmt.Errorf("vecfile: %s: record %d has dim %d, expected %d", path, n, dim, dims)
		}

		payload := make([]byte, dim*elemSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, 0, 0, fmt.Errorf("vecfile: reading record %d payload in %s: %w", n, path, err)
		}
		row, err := decodeRow(payload, dim, kind)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("vecfile: %s record %d: %w", path, n, err)
		}
		data = append(data, row...)
		n++
	}
	return data, n, dims, nil
}

func decodeRow(payload []byte, dim int, kind Kind) ([]float32, error) {
	row := make([]float32, dim)
	switch kind {
	case Float32Kind:
		for i := 0; i < dim; i++ {
			row[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
	case ByteKind:
		for i := 0; i < dim; i++ {
			row[i] = float32(payload[i])
		}
	case Int32Kind:
		for i := 0; i < dim; i++ {
			row[i] = float32(int32(binary.LittleEndian.Uint32(payload[i*4:])))
		}
	case HalfKind:
		for i := 0; i < dim; i++ {
			row[i] = float16ToFloat32(binary.LittleEndian.Uint16(payload[i*2:]))
		}
	default:
		return nil, fmt.Errorf("unsupported kind %d", kind)
	}
	return row, nil
}

// float16ToFloat32 decodes an IEEE-754 binary16 value (sign, 5-bit
// exponent, 10-bit mantissa) into float32. Subnormals and infinities are
// handled; NaN payloads are not preserved beyond the quiet-NaN bit.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0x1f:
		if mant == 0 {
			return math.Float32frombits(sign | 0x7f800000)
		}
		return math.Float32frombits(sign | 0x7fc00000)
	case exp == 0:
		// Subnormal half: normalise by shifting until the implicit bit appears.
		e := -1
		for mant&0x400 == 0 {
			mant <<= 1
			e++
		}
		mant &= 0x3ff
		exp32 := uint32(127 - 15 - e)
		return math.Float32frombits(sign | exp32<<23 | mant<<13)
	default:
		exp32 := uint32(int32(exp) - 15 + 127)
		return math.Float32frombits(sign | exp32<<23 | mant<<13)
	}
}

// ReadSVS reads a native .svs flat array: n*dims consecutive little-endian
// float32 values with no embedded header (dims/n come from the enclosing
// save table — see pkg/iostore).
func ReadSVS(path string, n uint64, dims int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vecfile: opening %s: %w", path, err)
	}
	defer f.Close()

	want := n * uint64(dims)
	buf := make([]byte, want*4)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("vecfile: reading %s: %w", path, err)
	}
	data := make([]float32, want)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return data, nil
}

// WriteSVS writes data as a native .svs flat array (no header).
func WriteSVS(path string, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vecfile: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var buf [4]byte
	for _, x := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("vecfile: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

// WriteRows writes n rows, each fetched through get, as a native .svs flat
// array: every row's elements in row-major order, back to back, with no
// embedded header (spec §6) — the same record-free framing as WriteSVS,
// generalized to any row source (dataset.Contiguous.Raw() already gives a
// flat slice WriteSVS can take directly; dataset.Blocked and other
// non-contiguous backings go through this instead) so pkg/vamana and
// pkg/ivf can serialize either dataset variant without vecfile importing
// pkg/dataset.
func WriteRows(path string, n uint64, get func(id uint64) ([]float32, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vecfile: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var buf [4]byte
	for id := uint64(0); id < n; id++ {
		row, err := get(id)
		if err != nil {
			return fmt.Errorf("vecfile: reading row %d for %s: %w", id, path, err)
		}
		for _, x := range row {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
			if _, err := w.Write(buf[:]); err != nil {
				return fmt.Errorf("vecfile: writing %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

// ReadRows reads n rows of dims float32 each from path (the format
// WriteRows/WriteSVS produce) and hands each one to set, in id order.
func ReadRows(path string, n uint64, dims int, set func(id uint64, row []float32) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vecfile: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	raw := make([]byte, dims*4)
	for id := uint64(0); id < n; id++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("vecfile: reading row %d from %s: %w", id, path, err)
		}
		row := make([]float32, dims)
		for i := range row {
			row[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		if err := set(id, row); err != nil {
			return fmt.Errorf("vecfile: %s row %d: %w", path, id, err)
		}
	}
	return nil
}
