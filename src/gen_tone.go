package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:     Generate audio tones by direct digital synthesis.
 *
 * Description:	A 32 bit phase accumulator advances by a fixed amount
 *		per sample for each frequency.  The upper 8 bits index a
 *		sine table.  Phase carries over when the frequency
 *		changes so there are no discontinuities between tones.
 *
 *---------------------------------------------------------------*/

import (
	"math"
)

const ticksPerCycle = 256.0 * 256.0 * 256.0 * 256.0

// Start at 45 degrees so no sample lands exactly on a zero crossing.
const phaseShift45 = uint32(32) << 24

// ToneGenerator produces 16 bit samples at a fixed rate.
type ToneGenerator struct {
	sampleRate int
	phase      uint32
	sine       [256]int16
}

/*------------------------------------------------------------------
 *
 * Name:        NewToneGenerator
 *
 * Inputs:      sampleRate	- Samples per second.
 *
 *		amp		- Signal amplitude on scale of 0 .. 100.
 *				  100% uses the full 16 bit sample range of +-32k.
 *
 *----------------------------------------------------------------*/

func NewToneGenerator(sampleRate int, amp int) *ToneGenerator {
	var g = &ToneGenerator{sampleRate: sampleRate, phase: phaseShift45} //nolint:exhaustruct

	amp = min(max(amp, 0), 100)

	for j := range g.sine {
		var a = (float64(j) / 256.0) * (2.0 * math.Pi)
		g.sine[j] = int16(math.Sin(a) * 32767 * float64(amp) / 100.0)
	}

	return g
}

// SampleRate is the rate given at creation.
func (g *ToneGenerator) SampleRate() int {
	return g.sampleRate
}

func (g *ToneGenerator) phaseStep(freq float64) uint32 {
	return uint32((freq * ticksPerCycle / float64(g.sampleRate)) + 0.5)
}

// Tone appends n samples of freq to out.  A frequency of 0 is silence.
func (g *ToneGenerator) Tone(out []int16, freq float64, n int) []int16 {
	if freq <= 0 {
		return append(out, make([]int16, n)...)
	}

	var change = g.phaseStep(freq)

	for range n {
		g.phase += change
		out = append(out, g.sine[(g.phase>>24)&0xff])
	}

	return out
}
