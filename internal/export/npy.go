package export

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"marlvault/internal/vault"
)

// Minimal NPY v1.0 codec, covering the dtypes the NPZ layout uses:
// '<f8' float arrays, '<i8' integer scalars, '|b1' boolean arrays and
// '<Un' unicode scalars (UTF-32LE).

const npyMagic = "\x93NUMPY"

type npyArray struct {
	Descr string
	Shape []int
	Data  []byte
}

func writeNPY(w io.Writer, array npyArray) error {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		array.Descr, shapeTuple(array.Shape))
	// Magic (6) + version (2) + header length (2) + header, padded with
	// spaces to a 64-byte boundary and terminated by a newline.
	base := len(npyMagic) + 2 + 2
	padded := header
	for (base+len(padded)+1)%64 != 0 {
		padded += " "
	}
	padded += "\n"

	if _, err := io.WriteString(w, npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(padded)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, padded); err != nil {
		return err
	}
	_, err := w.Write(array.Data)
	return err
}

func readNPY(r io.Reader) (npyArray, error) {
	head := make([]byte, len(npyMagic)+2+2)
	if _, err := io.ReadFull(r, head); err != nil {
		return npyArray{}, fmt.Errorf("read npy header: %w", err)
	}
	if string(head[:len(npyMagic)]) != npyMagic {
		return npyArray{}, fmt.Errorf("not an npy stream")
	}
	if head[len(npyMagic)] != 1 {
		return npyArray{}, fmt.Errorf("unsupported npy version %d.%d", head[len(npyMagic)], head[len(npyMagic)+1])
	}
	headerLen := int(binary.LittleEndian.Uint16(head[len(npyMagic)+2:]))
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return npyArray{}, fmt.Errorf("read npy dict: %w", err)
	}

	descr, err := headerField(string(header), "descr")
	if err != nil {
		return npyArray{}, err
	}
	order, err := headerField(string(header), "fortran_order")
	if err != nil {
		return npyArray{}, err
	}
	if order != "False" {
		return npyArray{}, fmt.Errorf("fortran-order npy arrays are unsupported")
	}
	shape, err := headerShape(string(header))
	if err != nil {
		return npyArray{}, err
	}

	size, err := elementSize(descr)
	if err != nil {
		return npyArray{}, err
	}
	count := 1
	for _, dim := range shape {
		count *= dim
	}
	data := make([]byte, count*size)
	if _, err := io.ReadFull(r, data); err != nil {
		return npyArray{}, fmt.Errorf("read npy data: %w", err)
	}
	return npyArray{Descr: descr, Shape: shape, Data: data}, nil
}

func headerField(header, key string) (string, error) {
	marker := "'" + key + "':"
	idx := strings.Index(header, marker)
	if idx < 0 {
		return "", fmt.Errorf("npy header missing %s", key)
	}
	rest := strings.TrimSpace(header[idx+len(marker):])
	if strings.HasPrefix(rest, "'") {
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return "", fmt.Errorf("npy header %s unterminated", key)
		}
		return rest[1 : 1+end], nil
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return "", fmt.Errorf("npy header %s unterminated", key)
	}
	return strings.TrimSpace(rest[:end]), nil
}

func headerShape(header string) ([]int, error) {
	marker := "'shape':"
	idx := strings.Index(header, marker)
	if idx < 0 {
		return nil, fmt.Errorf("npy header missing shape")
	}
	rest := strings.TrimSpace(header[idx+len(marker):])
	end := strings.Index(rest, ")")
	if !strings.HasPrefix(rest, "(") || end < 0 {
		return nil, fmt.Errorf("npy header shape unterminated")
	}
	tuple := rest[:end+1]
	if strings.TrimSpace(strings.Trim(tuple, "()")) == "" {
		return nil, nil // 0-d scalar
	}
	return vault.ParseShape(tuple)
}

func elementSize(descr string) (int, error) {
	switch {
	case descr == "<f8":
		return 8, nil
	case descr == "<i8":
		return 8, nil
	case descr == "|b1":
		return 1, nil
	case strings.HasPrefix(descr, "<U"):
		var runes int
		if _, err := fmt.Sscanf(descr, "<U%d", &runes); err != nil {
			return 0, fmt.Errorf("unsupported npy dtype %q", descr)
		}
		return runes * 4, nil
	default:
		return 0, fmt.Errorf("unsupported npy dtype %q", descr)
	}
}

func shapeTuple(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", shape[0])
	default:
		parts := make([]string, len(shape))
		for i, dim := range shape {
			parts[i] = fmt.Sprintf("%d", dim)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

func float64sArray(shape []int, values []float64) npyArray {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return npyArray{Descr: "<f8", Shape: shape, Data: data}
}

func boolsArray(shape []int, values []bool) npyArray {
	data := make([]byte, len(values))
	for i, v := range values {
		if v {
			data[i] = 1
		}
	}
	return npyArray{Descr: "|b1", Shape: shape, Data: data}
}

func int64Scalar(value int) npyArray {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(int64(value)))
	return npyArray{Descr: "<i8", Shape: nil, Data: data}
}

func stringScalar(value string) npyArray {
	runes := []rune(value)
	if len(runes) == 0 {
		// numpy refuses to construct a '<U0' dtype; an empty string is a
		// single NUL rune instead.
		return npyArray{Descr: "<U1", Shape: nil, Data: make([]byte, 4)}
	}
	data := make([]byte, 4*len(runes))
	for i, r := range runes {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(r))
	}
	return npyArray{Descr: fmt.Sprintf("<U%d", len(runes)), Shape: nil, Data: data}
}

func (a npyArray) float64s() ([]float64, error) {
	if a.Descr != "<f8" {
		return nil, fmt.Errorf("expected <f8 array, got %q", a.Descr)
	}
	values := make([]float64, len(a.Data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(a.Data[i*8:]))
	}
	return values, nil
}

func (a npyArray) bools() ([]bool, error) {
	if a.Descr != "|b1" {
		return nil, fmt.Errorf("expected |b1 array, got %q", a.Descr)
	}
	values := make([]bool, len(a.Data))
	for i, b := range a.Data {
		values[i] = b != 0
	}
	return values, nil
}

func (a npyArray) int64() (int, error) {
	if a.Descr != "<i8" || len(a.Data) != 8 {
		return 0, fmt.Errorf("expected <i8 scalar, got %q with %d bytes", a.Descr, len(a.Data))
	}
	return int(int64(binary.LittleEndian.Uint64(a.Data))), nil
}

func (a npyArray) str() (string, error) {
	if !strings.HasPrefix(a.Descr, "<U") {
		return "", fmt.Errorf("expected unicode scalar, got %q", a.Descr)
	}
	if len(a.Data)%4 != 0 {
		return "", fmt.Errorf("truncated unicode scalar")
	}
	var sb strings.Builder
	for i := 0; i+4 <= len(a.Data); i += 4 {
		r := rune(binary.LittleEndian.Uint32(a.Data[i:]))
		if r == 0 {
			break
		}
		if !utf8.ValidRune(r) {
			return "", fmt.Errorf("invalid rune in unicode scalar")
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}
