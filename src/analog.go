package twrfsk

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
)

// AnalogInput is an analog channel that can be read at any time without
// waiting, like an ADC pin.
type AnalogInput interface {
	Read() int
}

// SampleReader yields recorded samples in order.  It returns io.EOF after
// the last one.
type SampleReader interface {
	ReadSample() (int, error)
}

// Latch is an AnalogInput holding the most recent value stored by a
// producer running in another goroutine.
type Latch struct {
	v atomic.Int64
}

// NewLatch returns a latch reading initial until the first Store.
func NewLatch(initial int) *Latch {
	var l = new(Latch)
	l.Store(initial)

	return l
}

func (l *Latch) Store(v int) {
	l.v.Store(int64(v))
}

func (l *Latch) Read() int {
	return int(l.v.Load())
}

// AnalogFunc adapts a plain function to AnalogInput.
type AnalogFunc func() int

func (f AnalogFunc) Read() int {
	return f()
}

// ADC full scale is 12 bits, as on the receiver board.
const adcBits = 12

// PCM16ToADC maps a signed 16 bit audio sample onto the 0 .. 4095 range of
// a 12 bit converter, silence at mid scale.
func PCM16ToADC(s int16) int {
	return (int(s) + 32768) >> (16 - adcBits)
}

// PCM8ToADC maps an unsigned 8 bit audio sample onto 0 .. 4095.
func PCM8ToADC(s uint8) int {
	return int(s) << (adcBits - 8)
}

// LineReader reads one decimal reading per line, the format the receiver
// prints on its serial console.  Blank lines are skipped.
type LineReader struct {
	sc   *bufio.Scanner
	line int
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{sc: bufio.NewScanner(r), line: 0}
}

func (lr *LineReader) ReadSample() (int, error) {
	for lr.sc.Scan() {
		lr.line++

		var text = strings.TrimSpace(lr.sc.Text())
		if text == "" {
			continue
		}

		var v, err = strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lr.line, err)
		}

		return v, nil
	}

	if err := lr.sc.Err(); err != nil {
		return 0, err
	}

	return 0, io.EOF
}

// SliceReader replays samples held in memory.
type SliceReader struct {
	samples []int
	pos     int
}

func NewSliceReader(samples []int) *SliceReader {
	return &SliceReader{samples: samples, pos: 0}
}

func (s *SliceReader) ReadSample() (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}

	var v = s.samples[s.pos]
	s.pos++

	return v, nil
}
