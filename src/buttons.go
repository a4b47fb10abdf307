package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Front panel push buttons on GPIO lines.
 *
 * Description:	Each button pulls its line to ground when pressed,
 *		so the line is an input with the pull-up enabled and
 *		a falling edge is a press.  Edge events arrive from the
 *		kernel in another goroutine and are passed on through
 *		a channel which the receive loop drains when it has
 *		nothing else to do.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// ButtonEvent is one press or release.
type ButtonEvent struct {
	Name    string
	Pressed bool
	At      time.Duration // Kernel timestamp of the edge.
}

// ButtonConfig locates the buttons.  Lines maps button name to line offset.
type ButtonConfig struct {
	Chip     string         `yaml:"chip"`
	Lines    map[string]int `yaml:"lines,omitempty"`
	Debounce time.Duration  `yaml:"debounce"`
}

type buttonLine interface {
	Close() error
}

// Buttons holds the requested lines until Close.
type Buttons struct {
	lines  []buttonLine
	events chan ButtonEvent
}

// Events delivers presses and releases.  It is never closed.
func (b *Buttons) Events() <-chan ButtonEvent {
	return b.events
}

func (b *Buttons) Close() error {
	var errs []error

	for _, l := range b.lines {
		errs = append(errs, l.Close())
	}

	b.lines = nil

	return errors.Join(errs...)
}

/*------------------------------------------------------------------
 *
 * Name:        WatchButtons
 *
 * Purpose:     Request GPIO lines for the buttons and start watching them.
 *
 * Inputs:	cfg	- Chip name such as "gpiochip0" and line offsets.
 *
 *		depth	- Events buffered before new ones are dropped.
 *
 * Returns:	Buttons, or error if any line could not be requested.
 *		Lines already requested are released on error.
 *
 *----------------------------------------------------------------*/

func WatchButtons(cfg ButtonConfig, depth int, logger *log.Logger) (*Buttons, error) {
	var b = &Buttons{lines: nil, events: make(chan ButtonEvent, depth)}

	var names = make([]string, 0, len(cfg.Lines))
	for name := range cfg.Lines {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		var offset = cfg.Lines[name]

		var opts = []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithConsumer("twrfsk"),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				b.send(buttonEvent(name, evt), logger)
			}),
		}

		if cfg.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
		}

		var l, err = gpiocdev.RequestLine(cfg.Chip, offset, opts...)
		if err != nil {
			_ = b.Close()

			return nil, fmt.Errorf("button %s on %s line %d: %w", name, cfg.Chip, offset, err)
		}

		b.lines = append(b.lines, l)
	}

	return b, nil
}

func buttonEvent(name string, evt gpiocdev.LineEvent) ButtonEvent {
	return ButtonEvent{
		Name:    name,
		Pressed: evt.Type == gpiocdev.LineEventFallingEdge,
		At:      evt.Timestamp,
	}
}

// Never block the kernel event goroutine.
func (b *Buttons) send(ev ButtonEvent, logger *log.Logger) {
	select {
	case b.events <- ev:
	default:
		logger.Warn("Button event dropped", "button", ev.Name)
	}
}
