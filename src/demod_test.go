package twrfsk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct {
	err error
}

func (f failingSink) WriteBits([]Bit) error {
	return f.err
}

func newTestDemod(t *testing.T, sink BitSink, opts ...DemodOption) *Demodulator {
	t.Helper()

	var d, err = NewDemodulator(DefaultDemodConfig(), sink, opts...)
	require.NoError(t, err)

	return d
}

// squareWave returns n samples of a square wave around center with the
// given period in samples.  The first half of each period is high.
func squareWave(n, period, center, amplitude int) []int {
	var out = make([]int, n)

	for i := range out {
		if i%period < period/2 {
			out[i] = center + amplitude
		} else {
			out[i] = center - amplitude
		}
	}

	return out
}

// stepAll steps samples at the default 100us cadence starting from t=0
// and returns the windows that closed.
func stepAll(d *Demodulator, samples []int) []Window {
	var windows []Window

	for i, s := range samples {
		if w, closed := d.Step(time.Duration(i)*100*time.Microsecond, s); closed {
			windows = append(windows, w)
		}
	}

	return windows
}

func TestDemod_DefaultConfig(t *testing.T) {
	var cfg = DefaultDemodConfig()

	assert.Equal(t, 100*time.Microsecond, cfg.SampleInterval)
	assert.Equal(t, 100000*time.Microsecond, cfg.WindowDuration)
	assert.Equal(t, 10, cfg.AverageWindow)
	assert.Equal(t, 5, cfg.Hysteresis)
	assert.InDelta(t, 900.0, cfg.LowThreshold, 0)
	assert.InDelta(t, 1800.0, cfg.HighThreshold, 0)
	assert.Equal(t, 8, cfg.FlushBits)
	assert.Equal(t, 700, cfg.InitialBaseline)
	require.NoError(t, cfg.Validate())
}

func TestDemod_InvalidConfig(t *testing.T) {
	var cases = map[string]func(*DemodConfig){
		"interval":   func(c *DemodConfig) { c.SampleInterval = 0 },
		"window":     func(c *DemodConfig) { c.WindowDuration = -time.Second },
		"average":    func(c *DemodConfig) { c.AverageWindow = 0 },
		"hysteresis": func(c *DemodConfig) { c.Hysteresis = -1 },
		"thresholds": func(c *DemodConfig) { c.LowThreshold = 2000 },
		"flush":      func(c *DemodConfig) { c.FlushBits = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var cfg = DefaultDemodConfig()
			mutate(&cfg)

			var _, err = NewDemodulator(cfg, new(BitRecorder))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	var _, err = NewDemodulator(DefaultDemodConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDemod_InitialState(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	assert.InDelta(t, 700.0, d.Baseline(), 0)
	assert.Zero(t, d.Crossings())
	assert.Empty(t, d.Pending())

	// The first real sample at the initial baseline is not a crossing.
	d.Step(0, 700)
	assert.Zero(t, d.Crossings())
}

func TestDemod_FlatSignal(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	// Jumping from the initial baseline to V can register once; after the
	// average has filled with V nothing more is counted.
	var windows = stepAll(d, squareWave(2001, 2, 1234, 0))

	assert.InDelta(t, 1234.0, d.Baseline(), 1e-9)
	require.Len(t, windows, 2)
	assert.LessOrEqual(t, windows[0].Crossings, 1)
	assert.Zero(t, windows[1].Crossings)
	assert.InDelta(t, 0.0, windows[1].Frequency, 0)

	for _, w := range windows {
		assert.False(t, w.Decoded)
	}

	assert.Empty(t, d.Pending())
}

func TestDemod_FlatAtInitialBaseline(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	var windows = stepAll(d, squareWave(1001, 2, 700, 0))

	require.Len(t, windows, 1)
	assert.Zero(t, windows[0].Crossings)
}

func TestDemod_BaselineIsMeanOfWindow(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	for i := range 10 {
		d.Step(time.Duration(i)*100*time.Microsecond, 100*(i+1))
	}

	assert.InDelta(t, 550.0, d.Baseline(), 1e-9)

	// Eleventh sample replaces the oldest (100).
	d.Step(time.Millisecond, 1100)
	assert.InDelta(t, 650.0, d.Baseline(), 1e-9)
}

func TestDemod_Hysteresis(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	// Wiggles inside the band never count.
	var wiggle = []int{703, 697, 703, 697, 703, 697, 703, 697}
	stepAll(d, wiggle)
	assert.Zero(t, d.Crossings())
}

func TestDemod_SquareWaveCrossings(t *testing.T) {
	var cases = []struct {
		name      string
		period    int // samples of 100us
		frequency float64
	}{
		{"1000Hz", 10, 1000},
		{"2000Hz", 5, 2000},
		{"5000Hz", 2, 5000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d = newTestDemod(t, new(BitRecorder))

			var windows = stepAll(d, squareWave(1001, tc.period, 700, 10))

			require.Len(t, windows, 1)

			var expected = 2 * 1000 / tc.period
			assert.InDelta(t, expected, windows[0].Crossings, 1)
			assert.InDelta(t, tc.frequency, windows[0].Frequency, tc.frequency*0.01)
		})
	}
}

func TestDemod_Classify(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	var cases = []struct {
		freq    float64
		bit     Bit
		decoded bool
	}{
		{0, 0, false},
		{500, 0, false},
		{899.99, 0, false},
		{900, 0, true},
		{1000, 0, true},
		{1799.99, 0, true},
		{1800, 1, true},
		{2000, 1, true},
		{10000, 1, true},
	}

	for _, tc := range cases {
		var bit, decoded = d.Classify(tc.freq)
		assert.Equal(t, tc.decoded, decoded, "freq %g", tc.freq)

		if tc.decoded {
			assert.Equal(t, tc.bit, bit, "freq %g", tc.freq)
		}
	}
}

func TestDemod_SquareWaveDecodes(t *testing.T) {
	var cases = []struct {
		name    string
		period  int
		bit     Bit
		decoded bool
	}{
		{"1000Hz is 0", 10, 0, true},
		{"2000Hz is 1", 5, 1, true},
		{"500Hz is nothing", 20, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d = newTestDemod(t, new(BitRecorder))

			var windows = stepAll(d, squareWave(1001, tc.period, 700, 10))

			require.Len(t, windows, 1)
			assert.Equal(t, tc.decoded, windows[0].Decoded)

			if tc.decoded {
				assert.Equal(t, tc.bit, windows[0].Bit)
				assert.Equal(t, []Bit{tc.bit}, d.Pending())
			} else {
				assert.Empty(t, d.Pending())
			}
		})
	}
}

func TestDemod_FlushAfterEight(t *testing.T) {
	var rec = new(BitRecorder)
	var d = newTestDemod(t, rec)

	var pattern = []Bit{1, 0, 1, 1, 0, 0, 1, 0}

	for i, b := range pattern[:7] {
		d.crossings = 200 + 200*int(b)
		var w = d.CloseWindow(time.Duration(i+1) * 100 * time.Millisecond)
		assert.Nil(t, w.Flushed)
	}

	assert.Empty(t, rec.Groups())
	assert.Equal(t, pattern[:7], d.Pending())

	d.crossings = 200
	var w = d.CloseWindow(800 * time.Millisecond)

	assert.Equal(t, pattern, w.Flushed)
	assert.Equal(t, [][]Bit{pattern}, rec.Groups())
	assert.Empty(t, d.Pending())
	assert.Equal(t, int64(1), d.Stats().Flushes)
}

func TestDemod_DroppedWindowsDoNotCount(t *testing.T) {
	var rec = new(BitRecorder)
	var d = newTestDemod(t, rec)

	for range 20 {
		d.crossings = 50
		d.CloseWindow(0)
	}

	assert.Empty(t, rec.Groups())
	assert.Empty(t, d.Pending())
	assert.Equal(t, int64(20), d.Stats().Dropped)
}

func TestDemod_SinkFailureClearsBits(t *testing.T) {
	var d = newTestDemod(t, failingSink{err: errors.New("SD card not initialized")})

	for range 8 {
		d.crossings = 400
		d.CloseWindow(0)
	}

	assert.Empty(t, d.Pending())
	assert.Equal(t, int64(1), d.Stats().FlushErrors)
}

func TestDemod_WindowRestartsAtClose(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	var _, closed = d.Step(99900*time.Microsecond, 700)
	assert.False(t, closed)

	var w, closed2 = d.Step(100*time.Millisecond, 700)
	assert.True(t, closed2)
	assert.Equal(t, 100*time.Millisecond, w.End)

	var _, closed3 = d.Step(199900*time.Microsecond, 700)
	assert.False(t, closed3)

	var _, closed4 = d.Step(200*time.Millisecond, 700)
	assert.True(t, closed4)
}

func TestDemod_PollSkipsEarly(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))
	var reads int
	var in = AnalogFunc(func() int {
		reads++

		return 700
	})

	d.Poll(0, in)
	d.Poll(50*time.Microsecond, in)
	d.Poll(99*time.Microsecond, in)
	assert.Equal(t, 1, reads)

	d.Poll(100*time.Microsecond, in)
	assert.Equal(t, 2, reads)
	assert.Equal(t, int64(2), d.Stats().Samples)
}

func TestDemod_StartResets(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))

	stepAll(d, squareWave(500, 10, 700, 10))
	d.bits = append(d.bits, 1, 0)

	d.Start(time.Second)

	assert.Zero(t, d.Crossings())
	assert.Empty(t, d.Pending())
	assert.InDelta(t, 700.0, d.Baseline(), 0)
	assert.Zero(t, d.Stats().Samples)

	var _, closed = d.Step(time.Second+99*time.Millisecond, 700)
	assert.False(t, closed)
}

func TestDemod_Deterministic(t *testing.T) {
	var trace = append(squareWave(3000, 10, 700, 10), squareWave(3000, 5, 700, 10)...)

	var run = func() []Window {
		var d = newTestDemod(t, new(BitRecorder))

		return stepAll(d, trace)
	}

	assert.Equal(t, run(), run())
}

func TestBitsString(t *testing.T) {
	var bits = []Bit{0, 1, 1, 0}

	assert.Equal(t, "0110", BitsString(bits))

	var parsed, err = ParseBits("0110")
	require.NoError(t, err)
	assert.Equal(t, bits, parsed)

	_, err = ParseBits("01x0")
	require.Error(t, err)
}
