package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Report on the analog input stream now and then.
 *
 *		Otherwise there is no indication of input level until
 *		data is received correctly.  Each report gives the rate
 *		samples were actually taken at, which shows up a host
 *		too busy to keep up, and the range of readings, which
 *		shows up a receiver turned down or not connected.
 *
 *		Something like this each 100 seconds:
 *
 *		INFO Input sample_rate_k=9.9 min=1502 max=2596 level=1094
 *
 *---------------------------------------------------------------*/

import (
	"time"

	"github.com/charmbracelet/log"
)

// InputStats collects samples between reports.
type InputStats struct {
	interval time.Duration
	logger   *log.Logger

	start         time.Duration
	count         int
	lo, hi        int
	suppressFirst bool
	started       bool
}

// NewInputStats reports every interval.  0 turns reports off.
func NewInputStats(interval time.Duration, logger *log.Logger) *InputStats {
	return &InputStats{interval: interval, logger: logger} //nolint:exhaustruct
}

/*------------------------------------------------------------------
 *
 * Name:        Add
 *
 * Purpose:     Add one sample taken at now to the statistics.
 *		Print if the interval has passed.
 *
 * Description:	The first report would be off because collection
 *		didn't start on an interval boundary, so it is
 *		suppressed.  To avoid a long wait for the first one,
 *		the first collection period is only 3 seconds.
 *
 *----------------------------------------------------------------*/

func (s *InputStats) Add(now time.Duration, sample int) {
	if s.interval <= 0 {
		return
	}

	if !s.started {
		s.started = true
		s.suppressFirst = true
		s.start = now - s.interval + min(3*time.Second, s.interval)
		s.reset(sample)

		return
	}

	s.count++
	s.lo = min(s.lo, sample)
	s.hi = max(s.hi, sample)

	if now-s.start < s.interval {
		return
	}

	if s.suppressFirst {
		s.suppressFirst = false
	} else {
		var rate = float64(s.count) / (now - s.start).Seconds() / 1000.0

		s.logger.Info("Input",
			"sample_rate_k", float64(int(rate*10))/10,
			"min", s.lo,
			"max", s.hi,
			"level", s.hi-s.lo,
		)
	}

	s.start = now
	s.reset(sample)
}

func (s *InputStats) reset(sample int) {
	s.count = 0
	s.lo = sample
	s.hi = sample
}

// statsInput records every reading the demodulator takes.
type statsInput struct {
	in    AnalogInput
	stats *InputStats
	clock Clock
}

func (s statsInput) Read() int {
	var v = s.in.Read()
	s.stats.Add(s.clock.Now(), v)

	return v
}
