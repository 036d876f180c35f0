package landscape

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/forage/patch"
)

// FormatVersion is incremented when the binary layout changes.
const FormatVersion = 1

// MaxRows caps the row count ReadBinary accepts before allocating.
const MaxRows = 1 << 26

var magic = [4]byte{'F', 'L', 'N', 'D'}

// ErrBadFormat is returned when a binary landscape cannot be decoded.
var ErrBadFormat = errors.New("landscape: bad binary format")

type header struct {
	Magic      [4]byte
	Version    uint32
	NTimesteps int64
	XCrit      int64
	XMax       int64
	Rows       int64
}

// row is the fixed-width on-disk record: t, state, fitness_now, fitness_next, chosen_patch.
type row struct {
	T           int64
	State       int64
	FitnessNow  float64
	FitnessNext float64
	ChosenPatch int64
}

// WriteBinary writes the table as a zstd-compressed little-endian stream.
// Identical tables produce identical bytes.
func (tb *Table) WriteBinary(w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	h := header{
		Magic:      magic,
		Version:    FormatVersion,
		NTimesteps: int64(tb.bounds.NTimesteps),
		XCrit:      int64(tb.bounds.XCrit),
		XMax:       int64(tb.bounds.XMax),
		Rows:       int64(len(tb.records)),
	}
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		enc.Close()
		return fmt.Errorf("write header: %w", err)
	}

	rows := make([]row, len(tb.records))
	for i, r := range tb.records {
		rows[i] = row{
			T:           int64(r.T),
			State:       int64(r.State),
			FitnessNow:  r.FitnessNow,
			FitnessNext: r.FitnessNext,
			ChosenPatch: int64(r.ChosenPatch),
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, rows); err != nil {
		enc.Close()
		return fmt.Errorf("write rows: %w", err)
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush: %w", err)
	}
	return enc.Close()
}

// ReadBinary decodes a table written by WriteBinary.
func ReadBinary(r io.Reader) (*Table, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadFormat, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadFormat, h.Magic[:])
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadFormat, h.Version, FormatVersion)
	}

	for _, v := range []int64{h.NTimesteps, h.XCrit, h.XMax} {
		if int64(int(v)) != v {
			return nil, fmt.Errorf("%w: header value %d overflows int", ErrBadFormat, v)
		}
	}
	b := patch.Bounds{NTimesteps: int(h.NTimesteps), XCrit: int(h.XCrit), XMax: int(h.XMax)}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if b.NumRecords() > MaxRows {
		return nil, fmt.Errorf("%w: bounds need %d rows, limit %d", ErrBadFormat, b.NumRecords(), MaxRows)
	}
	if h.Rows != int64(b.NumRecords()) {
		return nil, fmt.Errorf("%w: %d rows for bounds expecting %d", ErrBadFormat, h.Rows, b.NumRecords())
	}

	rows := make([]row, h.Rows)
	if err := binary.Read(br, binary.LittleEndian, rows); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrBadFormat, err)
	}

	bd, err := NewBuilder(b)
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		rec := Record{
			T:           int(rw.T),
			State:       int(rw.State),
			FitnessNow:  rw.FitnessNow,
			FitnessNext: rw.FitnessNext,
			ChosenPatch: int(rw.ChosenPatch),
		}
		if err := bd.Add(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
		}
	}
	return bd.Finish()
}

// Save writes the table to path in binary form.
func (tb *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create landscape dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create landscape file: %w", err)
	}
	if err := tb.WriteBinary(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a binary table from path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open landscape file: %w", err)
	}
	defer f.Close()
	return ReadBinary(f)
}
