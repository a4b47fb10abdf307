package twrfsk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName is the instrumentation scope for all receiver metrics.
const meterName = "github.com/doismellburning/twrfsk"

// Metrics holds the OpenTelemetry instruments updated by the demodulator.
// A nil *Metrics records nothing.
type Metrics struct {
	Samples        metric.Int64Counter
	Windows        metric.Int64Counter
	Bits           metric.Int64Counter // attribute "bit"
	DroppedWindows metric.Int64Counter
	Flushes        metric.Int64Counter
	FlushErrors    metric.Int64Counter
	Frequency      metric.Float64Histogram
}

// Bucket boundaries in Hz, dense around the two tones.
var frequencyBuckets = []float64{
	100, 250, 500, 750, 900, 1000, 1250, 1500, 1800, 2000, 2500, 3000, 5000,
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	var m = mp.Meter(meterName)
	var met = new(Metrics)
	var err error

	if met.Samples, err = m.Int64Counter("twrfsk.samples",
		metric.WithDescription("Analog samples processed."),
	); err != nil {
		return nil, err
	}

	if met.Windows, err = m.Int64Counter("twrfsk.windows",
		metric.WithDescription("Measurement windows closed."),
	); err != nil {
		return nil, err
	}

	if met.Bits, err = m.Int64Counter("twrfsk.bits",
		metric.WithDescription("Bits decoded, by value."),
	); err != nil {
		return nil, err
	}

	if met.DroppedWindows, err = m.Int64Counter("twrfsk.windows.dropped",
		metric.WithDescription("Windows whose frequency was below the low band."),
	); err != nil {
		return nil, err
	}

	if met.Flushes, err = m.Int64Counter("twrfsk.flushes",
		metric.WithDescription("Groups of bits handed to the sink."),
	); err != nil {
		return nil, err
	}

	if met.FlushErrors, err = m.Int64Counter("twrfsk.flush.errors",
		metric.WithDescription("Groups the sink failed to store."),
	); err != nil {
		return nil, err
	}

	if met.Frequency, err = m.Float64Histogram("twrfsk.frequency",
		metric.WithDescription("Estimated tone frequency per window."),
		metric.WithUnit("Hz"),
		metric.WithExplicitBucketBoundaries(frequencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) sample() {
	if m == nil {
		return
	}

	m.Samples.Add(context.Background(), 1)
}

func (m *Metrics) window(w Window) {
	if m == nil {
		return
	}

	var ctx = context.Background()

	m.Windows.Add(ctx, 1)
	m.Frequency.Record(ctx, w.Frequency)

	if w.Decoded {
		m.Bits.Add(ctx, 1, metric.WithAttributes(attribute.String("bit", w.Bit.String())))
	} else {
		m.DroppedWindows.Add(ctx, 1)
	}
}

func (m *Metrics) flush(err error) {
	if m == nil {
		return
	}

	var ctx = context.Background()

	m.Flushes.Add(ctx, 1)

	if err != nil {
		m.FlushErrors.Add(ctx, 1)
	}
}

// NewPrometheusMetrics builds a meter provider exporting through the default
// Prometheus registry and the instruments on top of it.  Call shutdown when
// done.
func NewPrometheusMetrics() (*Metrics, func(context.Context) error, error) {
	var exporter, err = promexporter.New()
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	var mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	var met, metErr = NewMetrics(mp)
	if metErr != nil {
		return nil, nil, errors.Join(metErr, mp.Shutdown(context.Background()))
	}

	return met, mp.Shutdown, nil
}

// ServeMetrics serves /metrics on listener until ctx is cancelled.
func ServeMetrics(ctx context.Context, listener net.Listener, logger *log.Logger) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	var srv = &http.Server{ //nolint:exhaustruct
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck
	}()

	logger.Info("Serving metrics", "addr", listener.Addr().String())

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	return nil
}
