package twrfsk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

/*------------------------------------------------------------------
 *
 * Name:        Replay
 *
 * Purpose:     Run recorded samples through a demodulator.
 *
 * Inputs:	r		- Samples in the order they were taken.
 *
 *		d		- Demodulator, already started at time 0.
 *
 *		sampleRate	- Rate at which r was recorded.
 *
 *		onWindow	- Called for each closed window.  May be nil.
 *
 * Description:	Sample i is taken to have arrived at i / sampleRate.
 *		It is stepped only if the demodulator was due for a
 *		sample then, just as a live poll loop would have
 *		skipped it.  Time is virtual so the result only depends
 *		on the samples.
 *
 *		A window still open at the end of the samples is not
 *		closed, and bits short of a full group stay pending.
 *
 * Returns:	Nil at end of input, ctx.Err() if cancelled, or a read error.
 *
 *----------------------------------------------------------------*/

func Replay(ctx context.Context, r SampleReader, d *Demodulator, sampleRate int, onWindow func(Window)) error {
	return replayFrom(ctx, r, d, sampleRate, 0, onWindow)
}

// replayFrom numbers the first sample read as start.
func replayFrom(ctx context.Context, r SampleReader, d *Demodulator, sampleRate int, start int64, onWindow func(Window)) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: replay sample rate must be positive, got %d", ErrInvalidConfig, sampleRate)
	}

	for i := start; ; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		var v, err = r.ReadSample()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}

		var now = sampleTime(i, sampleRate)

		if !d.Due(now) {
			continue
		}

		if w, closed := d.Step(now, v); closed && onWindow != nil {
			onWindow(w)
		}
	}
}

// sampleTime is when sample i arrived.  Whole seconds are split off first
// so a capture left running for weeks does not overflow.
func sampleTime(i int64, sampleRate int) time.Duration {
	var rate = int64(sampleRate)

	return time.Duration(i/rate)*time.Second + time.Duration(i%rate)*time.Second/time.Duration(rate)
}

// DecodeSamples demodulates 16 bit audio held in memory and returns the
// bits written to the sink, in order.
func DecodeSamples(samples []int16, sampleRate int, cfg DemodConfig) ([]Bit, error) {
	var adc = make([]int, len(samples))
	for i, s := range samples {
		adc[i] = PCM16ToADC(s)
	}

	var rec = new(BitRecorder)

	var d, err = NewDemodulator(cfg, rec)
	if err != nil {
		return nil, err
	}

	if err := Replay(context.Background(), NewSliceReader(adc), d, sampleRate, nil); err != nil {
		return nil, err
	}

	return rec.Bits(), nil
}
