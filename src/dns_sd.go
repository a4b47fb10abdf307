package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the metrics endpoint using DNS-SD.
 *
 * Description:	A receiver left running on a small board somewhere is
 *		easier to find by name than by address.  Prometheus, or
 *		anything else that browses for the service type, can
 *		then pick it up.
 *
 *		This uses the pure-Go github.com/brutella/dnssd package
 *		so no system daemon is needed.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNSSDServiceType = "_twrfsk-metrics._tcp"

// DefaultServiceName is "twrfsk on <hostname>", or just "twrfsk" if the
// hostname cannot be obtained.
func DefaultServiceName(base string) string {
	var hostname, err = os.Hostname()
	if err != nil || hostname == "" {
		return base
	}

	// On some systems, an FQDN is returned; remove domain part.
	hostname, _, _ = strings.Cut(hostname, ".")

	return base + " on " + hostname
}

// AnnounceMetrics advertises the metrics endpoint on port until ctx is done.
func AnnounceMetrics(ctx context.Context, name string, port int, logger *log.Logger) error {
	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNSSDServiceType,
		Port: port,
		Text: map[string]string{"path": "/metrics"},
	}

	var sv, err = dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", err)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", err)
	}

	logger.Info("DNS-SD: announcing metrics", "port", port, "name", name)

	if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("DNS-SD: responder error: %w", err)
	}

	return nil
}
