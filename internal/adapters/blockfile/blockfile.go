// Package blockfile reads and writes block files: a little-endian header
// holding a uint32 blocks-per-day and a uint64 day count, followed by one row
// of blocks-per-day compact activity codes for every day, in day id order.
package blockfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/pkg/metrics"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 4 + 8

// Extension is the conventional block file suffix.
const Extension = ".ablk"

// Header describes the shape of a block file.
type Header struct {
	BlocksPerDay uint32
	DayCount     uint64
}

// Size returns the total encoded size of a file with this header.
func (h Header) Size() int64 {
	return HeaderSize + int64(h.BlocksPerDay)*int64(h.DayCount)
}

// Encode writes days to w. days[i] is the block array of day id i; every
// array must have blocksPerDay entries.
func Encode(w io.Writer, blocksPerDay int, days []blocks.Array) (int64, error) {
	if blocksPerDay <= 0 || blocksPerDay > int(^uint32(0)) {
		return 0, fmt.Errorf("%w: blocks per day %d", ErrInvalidHeader, blocksPerDay)
	}
	for i, d := range days {
		if len(d) != blocksPerDay {
			return 0, fmt.Errorf("day %d: %w: got %d blocks, want %d", i, blocks.ErrShapeMismatch, len(d), blocksPerDay)
		}
	}

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(blocksPerDay))
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(len(days)))

	var written int64
	n, err := w.Write(hdr[:])
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("write header: %w", err)
	}
	for i, d := range days {
		n, err := w.Write(d.Bytes())
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write day %d: %w", i, err)
		}
	}
	metrics.RecordBlockBytesWritten(written)
	return written, nil
}

// WriteFile creates path and encodes days into it.
func WriteFile(path string, blocksPerDay int, days []blocks.Array) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create block file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close block file %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err := Encode(bw, blocksPerDay, days); err != nil {
		return fmt.Errorf("encode block file %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush block file %s: %w", path, err)
	}
	return nil
}

// Reader streams the rows of a block file.
type Reader struct {
	r      io.Reader
	path   string
	header Header
	next   uint64
	row    []byte
}

// NewReader reads and validates the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r, "")
}

func newReader(r io.Reader, path string) (*Reader, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedError{Path: path, Day: -1, Expected: HeaderSize, Actual: int64(n)}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	metrics.RecordBlockBytesRead(HeaderSize)

	h := Header{
		BlocksPerDay: binary.LittleEndian.Uint32(hdr[0:4]),
		DayCount:     binary.LittleEndian.Uint64(hdr[4:12]),
	}
	if _, err := blocks.LayoutForBlocks(int(h.BlocksPerDay)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	return &Reader{r: r, path: path, header: h, row: make([]byte, h.BlocksPerDay)}, nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header { return r.header }

// Layout returns the block layout implied by the header.
func (r *Reader) Layout() blocks.Layout {
	l, _ := blocks.LayoutForBlocks(int(r.header.BlocksPerDay))
	return l
}

// Next returns the next day's blocks, or io.EOF once DayCount rows were read.
func (r *Reader) Next() (blocks.Array, error) {
	if r.next >= r.header.DayCount {
		return nil, io.EOF
	}
	n, err := io.ReadFull(r.r, r.row)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedError{
				Path:     r.path,
				Day:      int64(r.next),
				Expected: int64(len(r.row)),
				Actual:   int64(n),
			}
		}
		return nil, fmt.Errorf("read day %d: %w", r.next, err)
	}
	metrics.RecordBlockBytesRead(int64(n))

	arr, err := blocks.FromBytes(r.row)
	if err != nil {
		return nil, fmt.Errorf("%w: day %d: %w", ErrCorrupt, r.next, err)
	}
	r.next++
	return arr, nil
}

// Decode reads a whole block file. A short body fails with ErrTruncatedFile;
// no partial result is returned.
func Decode(r io.Reader) (Header, []blocks.Array, error) {
	return decode(r, "")
}

func decode(r io.Reader, path string) (Header, []blocks.Array, error) {
	br, err := newReader(r, path)
	if err != nil {
		return Header{}, nil, err
	}
	h := br.Header()
	// Cap the preallocation; a corrupt header must not trigger a huge allocation.
	days := make([]blocks.Array, 0, min(h.DayCount, 1<<16))
	for {
		arr, err := br.Next()
		if errors.Is(err, io.EOF) {
			return h, days, nil
		}
		if err != nil {
			return Header{}, nil, err
		}
		days = append(days, arr)
	}
}

// ReadFile decodes the block file at path.
func ReadFile(path string) (Header, []blocks.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open block file: %w", err)
	}
	defer f.Close()
	return decode(bufio.NewReader(f), path)
}

// File is a block file opened for streaming.
type File struct {
	*Reader
	f *os.File
}

// Open opens path and reads its header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block file: %w", err)
	}
	r, err := newReader(bufio.NewReader(f), path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }
