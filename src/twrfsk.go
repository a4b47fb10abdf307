// Package twrfsk receives two tone FSK data sent over a radio audio channel.
//
// A Demodulator turns analog readings into bits by counting crossings of a
// moving average; the rest of the package feeds it samples (serial port ADC
// readings, a sound card, recorded traces) and stores what it decodes.  The
// tone generator produces matching test signals.
package twrfsk

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedWAV is returned for WAV files other than 8 or 16 bit PCM.
	ErrUnsupportedWAV = errors.New("unsupported WAV format")

	// ErrGroupSize is returned by a sink that can only store whole bytes.
	ErrGroupSize = errors.New("bit group is not a whole number of bytes")
)
