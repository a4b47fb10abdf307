package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Store decoded bits.
 *
 * Description:	The receiver firmware appended each group of bits to a
 *		file on the SD card as the characters '0' and '1'.  That
 *		format is kept by TextFileSink.  ByteFileSink packs the
 *		same bits into bytes, most significant bit first, which
 *		is the order the transmitter sends them.
 *
 *		Files are opened and closed for every group so that
 *		nothing is lost if the receiver is switched off.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// BitSink stores each group of bits flushed by the demodulator.
type BitSink interface {
	WriteBits(bits []Bit) error
}

// ExpandPath applies strftime conversions such as %Y%m%d to path.
func ExpandPath(path string, t time.Time) (string, error) {
	var expanded, err = strftime.Format(path, t)
	if err != nil {
		return "", fmt.Errorf("output path %q: %w", path, err)
	}

	return expanded, nil
}

// TextFileSink appends bits to a file as ASCII '0' and '1'.
type TextFileSink struct {
	Path string
}

// NewTextFileSink expands strftime conversions in path once, now.
func NewTextFileSink(path string) (*TextFileSink, error) {
	var p, err = ExpandPath(path, time.Now())
	if err != nil {
		return nil, err
	}

	return &TextFileSink{Path: p}, nil
}

func (s *TextFileSink) WriteBits(bits []Bit) error {
	return appendFile(s.Path, []byte(BitsString(bits)))
}

// ByteFileSink appends bits to a file packed eight to a byte.
type ByteFileSink struct {
	Path string
}

// NewByteFileSink expands strftime conversions in path once, now.
func NewByteFileSink(path string) (*ByteFileSink, error) {
	var p, err = ExpandPath(path, time.Now())
	if err != nil {
		return nil, err
	}

	return &ByteFileSink{Path: p}, nil
}

func (s *ByteFileSink) WriteBits(bits []Bit) error {
	var data, err = PackBits(bits)
	if err != nil {
		return err
	}

	return appendFile(s.Path, data)
}

func appendFile(path string, data []byte) error {
	var f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}

	var _, writeErr = f.Write(data)
	var closeErr = f.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", path, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", path, closeErr)
	}

	return nil
}

// PackBits packs bits MSB first.  len(bits) must be a multiple of 8.
func PackBits(bits []Bit) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrGroupSize, len(bits))
	}

	var out = make([]byte, len(bits)/8)

	for i, b := range bits {
		out[i/8] |= byte(b&1) << (7 - i%8)
	}

	return out, nil
}

// UnpackBits is the inverse of PackBits.
func UnpackBits(data []byte) []Bit {
	var bits = make([]Bit, 0, len(data)*8)

	for _, c := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, Bit((c>>i)&1))
		}
	}

	return bits
}

// BitRecorder keeps every group it is given in memory.  Safe for use by
// one writer and concurrent readers.
type BitRecorder struct {
	mu     sync.Mutex
	groups [][]Bit
}

func (r *BitRecorder) WriteBits(bits []Bit) error {
	var g = make([]Bit, len(bits))
	copy(g, bits)

	r.mu.Lock()
	r.groups = append(r.groups, g)
	r.mu.Unlock()

	return nil
}

// Groups returns the groups written so far.
func (r *BitRecorder) Groups() [][]Bit {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out = make([][]Bit, len(r.groups))
	copy(out, r.groups)

	return out
}

// Bits returns everything written so far as one sequence.
func (r *BitRecorder) Bits() []Bit {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Bit
	for _, g := range r.groups {
		out = append(out, g...)
	}

	return out
}

// Bytes packs Bits, dropping any incomplete final byte.
func (r *BitRecorder) Bytes() []byte {
	var bits = r.Bits()
	var data, _ = PackBits(bits[:len(bits)-len(bits)%8])

	return data
}

// TeeSink writes every group to each sink in turn and returns the first error.
type TeeSink []BitSink

func (t TeeSink) WriteBits(bits []Bit) error {
	var first error

	for _, s := range t {
		if err := s.WriteBits(bits); err != nil && first == nil {
			first = err
		}
	}

	return first
}
