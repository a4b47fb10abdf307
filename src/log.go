package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:	Save every measurement window to a log file.
 *
 * Description: One CSV line per window, with the crossing count and
 *		frequency as well as the bit, for tuning thresholds and
 *		checking reception after the fact.
 *
 *		There are two alternatives here.
 *
 *		--window-log logfile	Specify full file path.
 *
 *		--window-log-dir logdir	Daily names will be created here.
 *
 *		Use one or the other but not both.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

var windowLogHeader = []string{"utime", "isotime", "crossings", "frequency", "decoded", "bit", "flushed"}

// WindowLog writes closed windows as CSV.  Not safe for concurrent use.
type WindowLog struct {
	dailyNames bool
	path       string // Directory when dailyNames, else the file.
	logger     *log.Logger
	now        func() time.Time

	fp        *os.File
	w         *csv.Writer
	openFname string
}

/*------------------------------------------------------------------
 *
 * Function:	NewWindowLog
 *
 * Inputs:	dailyNames	- True if daily names should be generated.
 *				  In this case path is a directory, which
 *				  is created if it doesn't exist.
 *
 *		path		- Log file name or just directory.
 *
 *------------------------------------------------------------------*/

func NewWindowLog(dailyNames bool, path string, logger *log.Logger) (*WindowLog, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: window log needs a path", ErrInvalidConfig)
	}

	if dailyNames {
		var stat, statErr = os.Stat(path)

		switch {
		case statErr == nil && !stat.IsDir():
			return nil, fmt.Errorf("%w: window log location %q is not a directory", ErrInvalidConfig, path)
		case statErr != nil:
			// Parent directory must exist.  We don't create multiple levels like "mkdir -p".
			if err := os.Mkdir(path, 0o755); err != nil { //nolint:gosec
				return nil, fmt.Errorf("failed to create window log location %q: %w", path, err)
			}

			logger.Info("Window log location has been created", "path", path)
		}
	}

	return &WindowLog{ //nolint:exhaustruct
		dailyNames: dailyNames,
		path:       path,
		logger:     logger,
		now:        time.Now,
	}, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Add one window to the log, opening or switching files
 *		as needed.
 *
 * Description:	Daily file names come from the current date, UTC.
 *		A header line is written when a file is first created.
 *
 *------------------------------------------------------------------*/

func (l *WindowLog) Write(win Window) error {
	var now = l.now().UTC()

	var fullPath = l.path

	if l.dailyNames {
		var fname = now.Format("2006-01-02.csv")

		// Close current file if name has changed.
		if l.fp != nil && fname != l.openFname {
			if err := l.Close(); err != nil {
				return err
			}
		}

		l.openFname = fname
		fullPath = filepath.Join(l.path, fname)
	}

	if l.fp == nil {
		if err := l.open(fullPath); err != nil {
			return err
		}
	}

	var bit = ""
	if win.Decoded {
		bit = win.Bit.String()
	}

	if err := l.w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		strconv.Itoa(win.Crossings),
		strconv.FormatFloat(win.Frequency, 'f', 1, 64),
		strconv.FormatBool(win.Decoded),
		bit,
		BitsString(win.Flushed),
	}); err != nil {
		return fmt.Errorf("window log: %w", err)
	}

	l.w.Flush()

	if err := l.w.Error(); err != nil {
		return fmt.Errorf("window log: %w", err)
	}

	return nil
}

func (l *WindowLog) open(fullPath string) error {
	// See if file already exists.  A header is written only if it didn't.
	var _, statErr = os.Stat(fullPath)
	var alreadyThere = statErr == nil

	l.logger.Info("Opening window log", "path", fullPath)

	var f, err = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("can't open window log %q for write: %w", fullPath, err)
	}

	l.fp = f
	l.w = csv.NewWriter(f)

	if !alreadyThere {
		if err := l.w.Write(windowLogHeader); err != nil {
			return fmt.Errorf("window log: %w", err)
		}
	}

	return nil
}

// Close closes any open log file.  Called when exiting or when the date changes.
func (l *WindowLog) Close() error {
	if l.fp == nil {
		return nil
	}

	l.logger.Info("Closing window log", "path", l.fp.Name())

	l.w.Flush()

	var err = l.fp.Close()

	l.fp = nil
	l.w = nil

	if err != nil {
		return fmt.Errorf("close window log: %w", err)
	}

	return nil
}
