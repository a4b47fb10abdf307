package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive audio from a sound card instead of the ADC.
 *
 * Description:	The default input device is opened for mono 16 bit
 *		samples.  Each sample is scaled to the 12 bit ADC
 *		range, and the position in the stream is its time, so
 *		the demodulator sees the same thing it would have from
 *		a recording.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// Frames per read from the device.
const audioFramesPerBuffer = 1024

// AudioInput is a SampleReader for the default sound card input.
type AudioInput struct {
	stream     *portaudio.Stream
	buf        []int16
	pos        int
	sampleRate int
	logger     *log.Logger
}

// OpenAudioInput initializes PortAudio and starts capturing.  Close must
// be called to release the device.
func OpenAudioInput(sampleRate int, logger *log.Logger) (*AudioInput, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: audio sample rate must be positive, got %d", ErrInvalidConfig, sampleRate)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize audio: %w", err)
	}

	var a = &AudioInput{ //nolint:exhaustruct
		buf:        make([]int16, audioFramesPerBuffer),
		sampleRate: sampleRate,
		logger:     logger,
	}

	var stream, err = portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(a.buf), a.buf)
	if err != nil {
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("could not open audio input at %d Hz: %w", sampleRate, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("could not start audio input: %w", err)
	}

	a.stream = stream
	a.pos = len(a.buf)

	logger.Info("Audio input open", "rate", sampleRate, "frames", len(a.buf))

	return a, nil
}

// SampleRate is the capture rate in Hz.
func (a *AudioInput) SampleRate() int {
	return a.sampleRate
}

// ReadSample blocks until the device has delivered the next sample.
func (a *AudioInput) ReadSample() (int, error) {
	if a.pos >= len(a.buf) {
		var err = a.stream.Read()

		// Some samples were lost.  Timing is off for this buffer but keep going.
		if errors.Is(err, portaudio.InputOverflowed) {
			a.logger.Warn("Audio input overflowed")
			err = nil
		}

		if err != nil {
			return 0, fmt.Errorf("audio input: %w", err)
		}

		a.pos = 0
	}

	var s = a.buf[a.pos]
	a.pos++

	return PCM16ToADC(s), nil
}

func (a *AudioInput) Close() error {
	var err = errors.Join(a.stream.Stop(), a.stream.Close())

	return errors.Join(err, portaudio.Terminate())
}
