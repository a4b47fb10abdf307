package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Analog readings from a board on a serial port.
 *
 * Description:	The board prints one ADC reading per line, in decimal,
 *		as fast as it can.  The newest reading is kept in a
 *		Latch for the receive loop to sample at its own pace,
 *		just as the firmware read its analog pin.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
	"go.bug.st/serial"
)

// Longest line kept.  Anything longer is noise.
const serialMaxLine = 160

// How long a read may wait before the context is checked again.
const serialReadTimeout = 100 * time.Millisecond

// SerialInput copies readings from a serial port into a Latch.
type SerialInput struct {
	port   io.ReadCloser
	latch  *Latch
	logger *log.Logger

	lines   int64
	ignored int64
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialInput
 *
 * Purpose:	Open serial port in raw mode.
 *
 * Inputs:	device	- Usually like /dev/ttyACM0 or /dev/ttyUSB0.
 *
 *		baud	- Speed.  9600, 115200 bps, etc.
 *			  If 0, leave it alone.
 *
 *		latch	- Updated with every reading.
 *
 *---------------------------------------------------------------*/

func OpenSerialInput(device string, baud int, latch *Latch, logger *log.Logger) (*SerialInput, error) {
	var t, err = term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", device, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400:
		err = t.SetSpeed(baud)
	default:
		logger.Error("Unsupported serial speed, using 115200", "device", device, "baud", baud)
		err = t.SetSpeed(115200)
	}

	if err == nil {
		err = t.SetReadTimeout(serialReadTimeout)
	}

	if err != nil {
		_ = t.Close()

		return nil, fmt.Errorf("could not configure serial port %s: %w", device, err)
	}

	return NewSerialInput(t, latch, logger), nil
}

// NewSerialInput reads from an already open port.  A read returning no
// data is taken as a timeout, so port should be set up to time out.
func NewSerialInput(port io.ReadCloser, latch *Latch, logger *log.Logger) *SerialInput {
	return &SerialInput{port: port, latch: latch, logger: logger, lines: 0, ignored: 0}
}

// Latch is where readings are stored.
func (s *SerialInput) Latch() *Latch {
	return s.latch
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Read lines until ctx is done or the port fails.
 *
 * Description:	Lines that aren't a number, such as boot messages,
 *		are skipped.  The port is closed on return.
 *
 * Returns:	Nil when ctx is done, otherwise the read error.
 *
 *--------------------------------------------------------------------*/

func (s *SerialInput) Run(ctx context.Context) error {
	defer s.port.Close()

	var buf = make([]byte, 256)
	var line = make([]byte, 0, serialMaxLine)

	for ctx.Err() == nil {
		var n, err = s.port.Read(buf)

		for _, ch := range buf[:n] {
			if ch == '\n' {
				s.handleLine(string(line))
				line = line[:0]

				continue
			}

			if len(line) < serialMaxLine {
				line = append(line, ch)
			}
		}

		if err != nil && !(n == 0 && errors.Is(err, io.EOF)) {
			if ctx.Err() != nil {
				break
			}

			/* This might happen if a USB device is unplugged. */
			return fmt.Errorf("lost communication with serial port: %w", err)
		}
	}

	s.logger.Debug("Serial input stopped", "lines", s.lines, "ignored", s.ignored)

	return nil
}

func (s *SerialInput) handleLine(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.lines++

	var v, err = strconv.Atoi(text)
	if err != nil {
		s.ignored++
		s.logger.Debug("Ignoring serial line", "line", text)

		return
	}

	s.latch.Store(v)
}

// SerialPortInfo describes one serial port found on the system.
type SerialPortInfo struct {
	Name string
}

// ListSerialPorts returns the serial ports present, for --list-ports.
func ListSerialPorts() ([]SerialPortInfo, error) {
	var names, err = serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var out = make([]SerialPortInfo, 0, len(names))
	for _, name := range names {
		out = append(out, SerialPortInfo{Name: name})
	}

	return out, nil
}
