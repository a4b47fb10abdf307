package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Demodulator for two tone FSK sampled from an analog input.
 *
 * Description:	The input is sampled at a fixed cadence.  The mean of the
 *		last few samples is the zero reference and every pass through
 *		it, clear of a small hysteresis band, counts as a crossing.
 *
 *		At the end of each measurement window the crossing count
 *		becomes a frequency estimate.  A frequency in the low band
 *		is a 0, the high band is a 1, anything slower is ignored.
 *
 *		Bits are collected and handed to the sink in groups.
 *		A partial group is still pending when the process stops
 *		and is never written out.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Bit is one decoded symbol, 0 or 1.
type Bit uint8

func (b Bit) String() string {
	if b == 0 {
		return "0"
	}

	return "1"
}

// DemodConfig holds the timing and threshold constants of the demodulator.
type DemodConfig struct {
	SampleInterval  time.Duration `yaml:"sample_interval"`
	WindowDuration  time.Duration `yaml:"window_duration"`
	AverageWindow   int           `yaml:"average_window"`   // Samples in the moving average.
	Hysteresis      int           `yaml:"hysteresis"`       // Margin either side of the baseline, in ADC units.
	LowThreshold    float64       `yaml:"low_threshold"`    // Hz.  Slower than this decodes nothing.
	HighThreshold   float64       `yaml:"high_threshold"`   // Hz.  At or above this is a 1.
	FlushBits       int           `yaml:"flush_bits"`       // Bits per write to the sink.
	InitialBaseline int           `yaml:"initial_baseline"` // Baseline before any sample arrives.
}

// DefaultDemodConfig returns the constants the receiver firmware was built with.
func DefaultDemodConfig() DemodConfig {
	return DemodConfig{
		SampleInterval:  100 * time.Microsecond,
		WindowDuration:  100 * time.Millisecond,
		AverageWindow:   10,
		Hysteresis:      5,
		LowThreshold:    900,
		HighThreshold:   1800,
		FlushBits:       8,
		InitialBaseline: 700,
	}
}

// Validate reports the first unusable setting.
func (c DemodConfig) Validate() error {
	switch {
	case c.SampleInterval <= 0:
		return fmt.Errorf("%w: sample interval must be positive, got %s", ErrInvalidConfig, c.SampleInterval)
	case c.WindowDuration <= 0:
		return fmt.Errorf("%w: window duration must be positive, got %s", ErrInvalidConfig, c.WindowDuration)
	case c.AverageWindow < 1:
		return fmt.Errorf("%w: average window must be at least 1 sample, got %d", ErrInvalidConfig, c.AverageWindow)
	case c.Hysteresis < 0:
		return fmt.Errorf("%w: hysteresis must not be negative, got %d", ErrInvalidConfig, c.Hysteresis)
	case c.LowThreshold < 0 || c.LowThreshold >= c.HighThreshold:
		return fmt.Errorf("%w: need 0 <= low threshold < high threshold, got %g and %g",
			ErrInvalidConfig, c.LowThreshold, c.HighThreshold)
	case c.FlushBits < 1:
		return fmt.Errorf("%w: flush size must be at least 1 bit, got %d", ErrInvalidConfig, c.FlushBits)
	}

	return nil
}

// Window is the outcome of one measurement window.
type Window struct {
	End       time.Duration
	Crossings int
	Frequency float64
	Bit       Bit
	Decoded   bool
	Flushed   []Bit // Bits handed to the sink when this window closed, if any.
}

// Stats are running totals since the last Start.
type Stats struct {
	Samples       int64
	Windows       int64
	Bits          int64
	Dropped       int64
	Flushes       int64
	FlushErrors   int64
	LastFrequency float64
	Baseline      float64
}

// DemodOption configures optional collaborators of a Demodulator.
type DemodOption func(*Demodulator)

// WithLogger sets the logger for decoded bits and sink failures.
func WithLogger(l *log.Logger) DemodOption {
	return func(d *Demodulator) {
		d.logger = l
	}
}

// WithMetrics records demodulator activity in m.
func WithMetrics(m *Metrics) DemodOption {
	return func(d *Demodulator) {
		d.metrics = m
	}
}

// Demodulator holds all state of one receive channel.  It is not safe for
// concurrent use; one goroutine must own it so samples are processed in the
// order they were taken.
type Demodulator struct {
	cfg     DemodConfig
	sink    BitSink
	logger  *log.Logger
	metrics *Metrics

	window   []int // Last AverageWindow samples, oldest overwritten first.
	next     int
	baseline float64
	prev     int

	sampled     bool
	lastSample  time.Duration
	windowStart time.Duration
	crossings   int

	bits  []Bit
	stats Stats
}

/*------------------------------------------------------------------
 *
 * Name:        NewDemodulator
 *
 * Purpose:     Create a demodulator which writes decoded bits to sink.
 *
 * Inputs:	cfg	- Timing and thresholds.  See DefaultDemodConfig.
 *
 *		sink	- Receives each complete group of bits.
 *
 * Returns:	Demodulator started at time 0, or error for a bad config.
 *
 *----------------------------------------------------------------*/

func NewDemodulator(cfg DemodConfig, sink BitSink, opts ...DemodOption) (*Demodulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if sink == nil {
		return nil, fmt.Errorf("%w: demodulator needs a bit sink", ErrInvalidConfig)
	}

	var d = &Demodulator{ //nolint:exhaustruct
		cfg:    cfg,
		sink:   sink,
		logger: log.New(io.Discard),
		window: make([]int, cfg.AverageWindow),
		bits:   make([]Bit, 0, cfg.FlushBits),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.Start(0)

	return d, nil
}

// Config returns the settings the demodulator was created with.
func (d *Demodulator) Config() DemodConfig {
	return d.cfg
}

// Start puts the demodulator back in its initial state with the first
// measurement window beginning at now.  Pending bits are discarded.
func (d *Demodulator) Start(now time.Duration) {
	for i := range d.window {
		d.window[i] = d.cfg.InitialBaseline
	}

	d.next = 0
	d.baseline = float64(d.cfg.InitialBaseline)
	d.prev = d.cfg.InitialBaseline

	d.sampled = false
	d.lastSample = now
	d.windowStart = now
	d.crossings = 0

	d.bits = d.bits[:0]
	d.stats = Stats{Baseline: d.baseline} //nolint:exhaustruct
}

// Due reports whether a sample should be taken at now.
func (d *Demodulator) Due(now time.Duration) bool {
	return !d.sampled || now-d.lastSample >= d.cfg.SampleInterval
}

// Poll is one iteration of the receive loop.  It does nothing if called
// before the next sample is due; otherwise it reads in once and steps.
func (d *Demodulator) Poll(now time.Duration, in AnalogInput) (Window, bool) {
	if !d.Due(now) {
		return Window{}, false //nolint:exhaustruct
	}

	return d.Step(now, in.Read())
}

/*------------------------------------------------------------------
 *
 * Name:        Step
 *
 * Purpose:     Process one sample taken at time now.
 *
 * Description:	Update the moving average, look for a crossing, and
 *		close the measurement window if it has run its course.
 *
 * Returns:	The window result and true if a window closed.
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) Step(now time.Duration, sample int) (Window, bool) {
	d.sampled = true
	d.lastSample = now

	d.window[d.next] = sample
	d.next = (d.next + 1) % len(d.window)

	// Full recompute every time.  N is small and there's no drift.
	var sum float64
	for _, v := range d.window {
		sum += float64(v)
	}

	d.baseline = sum / float64(len(d.window))

	var lo = d.baseline - float64(d.cfg.Hysteresis)
	var hi = d.baseline + float64(d.cfg.Hysteresis)
	var prev = float64(d.prev)
	var cur = float64(sample)

	if (prev < lo && cur >= hi) || (prev > hi && cur <= lo) {
		d.crossings++
	}

	d.prev = sample

	d.stats.Samples++
	d.stats.Baseline = d.baseline
	d.metrics.sample()

	if now-d.windowStart >= d.cfg.WindowDuration {
		return d.CloseWindow(now), true
	}

	return Window{}, false //nolint:exhaustruct
}

/*------------------------------------------------------------------
 *
 * Name:        CloseWindow
 *
 * Purpose:     End the current measurement window.
 *
 * Description:	Convert the crossing count to a frequency, decode a
 *		bit if it falls in one of the bands, write out a full
 *		group of bits, then start the next window at now.
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) CloseWindow(now time.Duration) Window {
	var w = Window{ //nolint:exhaustruct
		End:       now,
		Crossings: d.crossings,
		Frequency: d.Frequency(d.crossings),
	}

	w.Bit, w.Decoded = d.Classify(w.Frequency)

	d.stats.Windows++
	d.stats.LastFrequency = w.Frequency
	d.metrics.window(w)

	if w.Decoded {
		d.bits = append(d.bits, w.Bit)
		d.stats.Bits++
		d.logger.Debug("Stored bit", "bit", w.Bit, "freq", w.Frequency, "crossings", w.Crossings)
	} else {
		d.stats.Dropped++
		d.logger.Debug("No valid bit detected", "freq", w.Frequency, "crossings", w.Crossings)
	}

	if len(d.bits) >= d.cfg.FlushBits {
		w.Flushed = d.flush()
	}

	d.crossings = 0
	d.windowStart = now

	return w
}

// Frequency converts a crossing count over one configured window to Hz.
// Two crossings make one cycle.
func (d *Demodulator) Frequency(crossings int) float64 {
	return (float64(crossings) / 2.0) / d.cfg.WindowDuration.Seconds()
}

// Classify maps a frequency to a bit.  The second result is false when the
// frequency is below the low band.
func (d *Demodulator) Classify(freq float64) (Bit, bool) {
	switch {
	case freq >= d.cfg.HighThreshold:
		return 1, true
	case freq >= d.cfg.LowThreshold:
		return 0, true
	default:
		return 0, false
	}
}

// The accumulator is cleared whether or not the sink accepted the bits.
func (d *Demodulator) flush() []Bit {
	var out = make([]Bit, len(d.bits))
	copy(out, d.bits)
	d.bits = d.bits[:0]

	d.stats.Flushes++

	var err = d.sink.WriteBits(out)
	d.metrics.flush(err)

	if err != nil {
		d.stats.FlushErrors++
		d.logger.Error("Failed to save bits", "bits", BitsString(out), "err", err)

		return out
	}

	d.logger.Info("Data saved", "bits", BitsString(out))

	return out
}

// Pending returns a copy of the bits not yet written to the sink.
func (d *Demodulator) Pending() []Bit {
	var out = make([]Bit, len(d.bits))
	copy(out, d.bits)

	return out
}

// Crossings returns the count so far in the current window.
func (d *Demodulator) Crossings() int {
	return d.crossings
}

// Baseline returns the current moving average.
func (d *Demodulator) Baseline() float64 {
	return d.baseline
}

// Stats returns running totals.
func (d *Demodulator) Stats() Stats {
	return d.stats
}

// BitsString renders bits as a string of '0' and '1'.
func BitsString(bits []Bit) string {
	var b = make([]byte, len(bits))
	for i, bit := range bits {
		b[i] = '0' + byte(bit)
	}

	return string(b)
}

// ParseBits is the inverse of BitsString.
func ParseBits(s string) ([]Bit, error) {
	var bits = make([]Bit, 0, len(s))

	for i, c := range s {
		switch c {
		case '0':
			bits = append(bits, 0)
		case '1':
			bits = append(bits, 1)
		default:
			return nil, fmt.Errorf("invalid bit %q at offset %d", c, i)
		}
	}

	return bits, nil
}
