package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Put a complete receiver together from its configuration.
 *
 * Description:	Live serial input runs the poll loop against the
 *		monotonic clock.  Audio and recordings are stepped on
 *		their own sample clock instead.  Either way the decoded
 *		bits go to the output file, and optionally every window
 *		goes to a CSV log and counts go to Prometheus.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Buffered button events before new ones are dropped.
const buttonEventDepth = 16

/*------------------------------------------------------------------
 *
 * Name:        RunReceiver
 *
 * Purpose:     Receive as cfg says until ctx is done or, for a
 *		recording, until its end.
 *
 * Returns:	The first error from any part, or nil.
 *
 *----------------------------------------------------------------*/

func RunReceiver(ctx context.Context, cfg *Config, logger *log.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var kind, arg, _ = ParseSource(cfg.Input.Source)

	var sink, recorder, sinkErr = newOutputSink(cfg.Output)
	if sinkErr != nil {
		return sinkErr
	}

	var hook, closeHook, hookErr = newWindowHook(cfg.Output, logger)
	if hookErr != nil {
		return hookErr
	}

	defer closeHook()

	var runCtx, cancel = context.WithCancel(ctx)
	defer cancel()

	var g, gctx = errgroup.WithContext(runCtx)

	var metrics, err = startMetrics(gctx, g, cfg.Metrics, logger)
	if err != nil {
		return err
	}

	// The metrics server may already be up.  Wait for it to stop.
	var abort = func(err error) error {
		cancel()

		return errors.Join(err, g.Wait())
	}

	var demodLogger = logger.WithPrefix("demod")

	var d, demodErr = NewDemodulator(cfg.Demod, sink, WithLogger(demodLogger), WithMetrics(metrics))
	if demodErr != nil {
		return abort(demodErr)
	}

	logger.Info("Receiving", "input", cfg.Input.Source, "output", describeSink(sink), "format", cfg.Output.Format)

	// Stop the metrics server and friends once decoding ends.
	var decode = func(f func(context.Context) error) {
		g.Go(func() error {
			defer cancel()

			return f(gctx)
		})
	}

	switch kind {
	case SourceSerial:
		var latch = NewLatch(cfg.Demod.InitialBaseline)

		var in, err = OpenSerialInput(arg, cfg.Input.Baud, latch, logger.WithPrefix("serial"))
		if err != nil {
			return abort(err)
		}

		var opts = []ReceiverOption{WithWindowHook(hook), WithInputStats(cfg.Input.StatsInterval)}

		if len(cfg.Buttons.Lines) > 0 {
			var buttons, err = WatchButtons(cfg.Buttons, buttonEventDepth, logger.WithPrefix("buttons"))
			if err != nil {
				_ = in.port.Close()

				return abort(err)
			}

			defer buttons.Close()

			opts = append(opts, WithButtons(buttons.Events()))
		}

		var r = NewReceiver(d, latch, MonotonicClock{}, logger, opts...)

		g.Go(func() error { return in.Run(gctx) })
		decode(r.Run)
	case SourceAudio:
		var in, err = OpenAudioInput(cfg.Input.SampleRate, logger.WithPrefix("audio"))
		if err != nil {
			return abort(err)
		}

		defer in.Close()

		decode(func(ctx context.Context) error {
			return replayAndWarn(ctx, in, d, in.SampleRate(), hook, logger)
		})
	case SourceWAV:
		var f, err = os.Open(arg) //nolint:gosec
		if err != nil {
			return abort(fmt.Errorf("could not open %s: %w", arg, err))
		}

		defer f.Close()

		var wr, wavErr = NewWAVReader(f)
		if wavErr != nil {
			return abort(fmt.Errorf("%s: %w", arg, wavErr))
		}

		logger.Info("Reading WAV", "file", arg, "rate", wr.SampleRate(), "channels", wr.Channels(), "bits", wr.BitsPerSample())

		decode(func(ctx context.Context) error {
			return replayAndWarn(ctx, wr, d, wr.SampleRate(), hook, logger)
		})
	case SourceText:
		var f, err = os.Open(arg) //nolint:gosec
		if err != nil {
			return abort(fmt.Errorf("could not open %s: %w", arg, err))
		}

		defer f.Close()

		decode(func(ctx context.Context) error {
			return replayAndWarn(ctx, NewLineReader(f), d, cfg.Input.SampleRate, hook, logger)
		})
	}

	var runErr = g.Wait()

	var s = d.Stats()
	logger.Info("Receiver stopped", "samples", s.Samples, "windows", s.Windows, "bits", s.Bits, "flush_errors", s.FlushErrors)

	if recorder != nil && cfg.Output.ImageWidth > 0 {
		if err := saveImage(cfg.Output, sink, recorder, logger); err != nil {
			return errors.Join(runErr, err)
		}
	}

	return runErr
}

func replayAndWarn(ctx context.Context, r SampleReader, d *Demodulator, rate int, hook func(Window), logger *log.Logger) error {
	var err = Replay(ctx, r, d, rate, hook)

	WarnPending(d, logger)

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func startMetrics(ctx context.Context, g *errgroup.Group, cfg MetricsConfig, logger *log.Logger) (*Metrics, error) {
	if cfg.Listen == "" {
		return nil, nil //nolint:nilnil
	}

	var listener, err = net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	var metrics, shutdown, metErr = NewPrometheusMetrics()
	if metErr != nil {
		_ = listener.Close()

		return nil, metErr
	}

	g.Go(func() error {
		var err = ServeMetrics(ctx, listener, logger.WithPrefix("metrics"))

		return errors.Join(err, shutdown(context.WithoutCancel(ctx)))
	})

	if cfg.DNSSD {
		var _, portStr, _ = net.SplitHostPort(listener.Addr().String())
		var port, _ = strconv.Atoi(portStr)

		g.Go(func() error {
			// Not being discoverable is no reason to stop receiving.
			if err := AnnounceMetrics(ctx, DefaultServiceName(cfg.ServiceName), port, logger.WithPrefix("dns-sd")); err != nil {
				logger.Error("DNS-SD announcement failed", "err", err)
			}

			return nil
		})
	}

	return metrics, nil
}

// The recorder is non-nil when the decoded bytes are also kept for a picture.
func newOutputSink(cfg OutputConfig) (BitSink, *BitRecorder, error) {
	var file BitSink
	var err error

	if cfg.Format == FormatBinary {
		file, err = NewByteFileSink(cfg.Path)
	} else {
		file, err = NewTextFileSink(cfg.Path)
	}

	if err != nil {
		return nil, nil, err
	}

	if cfg.ImageWidth <= 0 {
		return file, nil, nil
	}

	var rec = new(BitRecorder)

	return TeeSink{file, rec}, rec, nil
}

func describeSink(s BitSink) string {
	switch s := s.(type) {
	case *TextFileSink:
		return s.Path
	case *ByteFileSink:
		return s.Path
	case TeeSink:
		return describeSink(s[0])
	default:
		return fmt.Sprintf("%T", s)
	}
}

func newWindowHook(cfg OutputConfig, logger *log.Logger) (func(Window), func(), error) {
	var wl *WindowLog
	var err error

	switch {
	case cfg.WindowLog != "":
		wl, err = NewWindowLog(false, cfg.WindowLog, logger)
	case cfg.WindowLogDir != "":
		wl, err = NewWindowLog(true, cfg.WindowLogDir, logger)
	default:
		return nil, func() {}, nil
	}

	if err != nil {
		return nil, nil, err
	}

	var hook = func(w Window) {
		if err := wl.Write(w); err != nil {
			logger.Error("Failed to log window", "err", err)
		}
	}

	var closeHook = func() {
		if err := wl.Close(); err != nil {
			logger.Error("Failed to close window log", "err", err)
		}
	}

	return hook, closeHook, nil
}

func saveImage(cfg OutputConfig, sink BitSink, rec *BitRecorder, logger *log.Logger) error {
	var data = rec.Bytes()
	if len(data) == 0 {
		logger.Warn("No complete bytes received, image not saved")

		return nil
	}

	var img, err = BytesToImage(data, cfg.ImageWidth)
	if err != nil {
		return err
	}

	var path = describeSink(sink) + ".png"

	var f, createErr = os.Create(path) //nolint:gosec
	if createErr != nil {
		return fmt.Errorf("could not create %s: %w", path, createErr)
	}

	if err := WriteImage(f, img); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}

	logger.Info("Image saved", "file", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	return nil
}
