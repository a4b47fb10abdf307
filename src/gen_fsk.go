package twrfsk

import (
	"fmt"
	"math"
	"time"
)

// FSKConfig describes the signal the transmitter sends: one tone per bit,
// each byte most significant bit first.
type FSKConfig struct {
	SampleRate     int           `yaml:"sample_rate"`
	BitDuration    time.Duration `yaml:"bit_duration"`
	ZeroFreq       float64       `yaml:"zero_freq"`
	OneFreq        float64       `yaml:"one_freq"`
	Amplitude      int           `yaml:"amplitude"` // Percent of full scale.
	MarkerFreq     float64       `yaml:"marker_freq"`
	MarkerDuration time.Duration `yaml:"marker_duration"` // Before and after the data.  0 for none.
}

// DefaultFSKConfig matches DefaultDemodConfig: 100 ms per bit, 1000 and
// 2000 Hz tones, and a 500 Hz marker the receiver ignores.
func DefaultFSKConfig() FSKConfig {
	return FSKConfig{
		SampleRate:     10000,
		BitDuration:    100 * time.Millisecond,
		ZeroFreq:       1000,
		OneFreq:        2000,
		Amplitude:      50,
		MarkerFreq:     500,
		MarkerDuration: 200 * time.Millisecond,
	}
}

func (c FSKConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.BitDuration <= 0:
		return fmt.Errorf("%w: bit duration must be positive, got %s", ErrInvalidConfig, c.BitDuration)
	case c.ZeroFreq <= 0 || c.OneFreq <= 0:
		return fmt.Errorf("%w: tone frequencies must be positive", ErrInvalidConfig)
	case c.ZeroFreq*2 > float64(c.SampleRate) || c.OneFreq*2 > float64(c.SampleRate):
		return fmt.Errorf("%w: tones must be below half the sample rate of %d", ErrInvalidConfig, c.SampleRate)
	case c.Amplitude <= 0 || c.Amplitude > 100:
		return fmt.Errorf("%w: amplitude must be 1 .. 100 percent, got %d", ErrInvalidConfig, c.Amplitude)
	case c.MarkerDuration < 0:
		return fmt.Errorf("%w: marker duration must not be negative", ErrInvalidConfig)
	}

	return nil
}

// SamplesFor is the number of samples covering d at the configured rate.
func (c FSKConfig) SamplesFor(d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(c.SampleRate)))
}

// GenerateFSK modulates data into audio samples.
func GenerateFSK(data []byte, cfg FSKConfig) ([]int16, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var g = NewToneGenerator(cfg.SampleRate, cfg.Amplitude)
	var perBit = cfg.SamplesFor(cfg.BitDuration)
	var marker = cfg.SamplesFor(cfg.MarkerDuration)

	var out = make([]int16, 0, 2*marker+len(data)*8*perBit)

	out = g.Tone(out, cfg.MarkerFreq, marker)

	for _, bit := range UnpackBits(data) {
		var freq = cfg.ZeroFreq
		if bit == 1 {
			freq = cfg.OneFreq
		}

		out = g.Tone(out, freq, perBit)
	}

	out = g.Tone(out, cfg.MarkerFreq, marker)

	return out, nil
}
