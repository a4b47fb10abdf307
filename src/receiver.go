package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	The receive loop.
 *
 * Description:	Poll the demodulator at the sample interval, hand
 *		closed windows to whoever wants them, and look after
 *		the buttons in between.  This goroutine is the only one
 *		that touches the demodulator.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Receiver ties a Demodulator to a live analog input.
type Receiver struct {
	demod    *Demodulator
	input    AnalogInput
	clock    Clock
	logger   *log.Logger
	buttons  <-chan ButtonEvent
	onWindow func(Window)
	stats    *InputStats
}

// ReceiverOption configures optional parts of a Receiver.
type ReceiverOption func(*Receiver)

// WithButtons makes the receiver report its status when a button is pressed.
func WithButtons(events <-chan ButtonEvent) ReceiverOption {
	return func(r *Receiver) {
		r.buttons = events
	}
}

// WithWindowHook calls fn for every closed window, from the receive goroutine.
func WithWindowHook(fn func(Window)) ReceiverOption {
	return func(r *Receiver) {
		r.onWindow = fn
	}
}

// WithInputStats logs the rate and range of readings every interval.
func WithInputStats(interval time.Duration) ReceiverOption {
	return func(r *Receiver) {
		r.stats = NewInputStats(interval, r.logger)
	}
}

// NewReceiver restarts d with its first window beginning now.
func NewReceiver(d *Demodulator, input AnalogInput, clock Clock, logger *log.Logger, opts ...ReceiverOption) *Receiver {
	var r = &Receiver{ //nolint:exhaustruct
		demod:  d,
		input:  input,
		clock:  clock,
		logger: logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.stats != nil {
		r.input = statsInput{in: input, stats: r.stats, clock: clock}
	}

	d.Start(clock.Now())

	return r
}

/*------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Receive until ctx is done.
 *
 * Description:	A ticker at the sample interval wakes the loop.  If the
 *		process falls behind, ticks are dropped and the next
 *		poll takes one sample; the window still ends on time.
 *
 * Returns:	Nil.  Stopping is not an error.
 *
 *----------------------------------------------------------------*/

func (r *Receiver) Run(ctx context.Context) error {
	var ticker = time.NewTicker(r.demod.Config().SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			WarnPending(r.demod, r.logger)

			return nil
		case <-ticker.C:
			r.poll()
		}
	}
}

// One pass of the loop.
func (r *Receiver) poll() {
	if w, closed := r.demod.Poll(r.clock.Now(), r.input); closed && r.onWindow != nil {
		r.onWindow(w)
	}

	r.drainButtons()
}

func (r *Receiver) drainButtons() {
	if r.buttons == nil {
		return
	}

	for {
		select {
		case ev := <-r.buttons:
			if ev.Pressed {
				r.reportStatus(ev.Name)
			}
		default:
			return
		}
	}
}

func (r *Receiver) reportStatus(button string) {
	var s = r.demod.Stats()

	r.logger.Info("Status",
		"button", button,
		"windows", s.Windows,
		"bits", s.Bits,
		"pending", len(r.demod.Pending()),
		"freq", s.LastFrequency,
		"baseline", s.Baseline,
	)
}

// WarnPending logs the bits that will never reach the sink because there
// were not enough of them for a full group.
func WarnPending(d *Demodulator, logger *log.Logger) {
	var pending = d.Pending()
	if len(pending) == 0 {
		return
	}

	logger.Warn("Discarding bits short of a full group",
		"pending", len(pending),
		"bits", BitsString(pending),
		"group", d.Config().FlushBits,
	)
}
