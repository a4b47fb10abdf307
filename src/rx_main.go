package twrfsk

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

/*-------------------------------------------------------------------
 *
 * Name:        RxMain
 *
 * Purpose:     Main program for the twrfsk-rx receiver.
 *
 * Description:	Settings come from the config file, if any, and then
 *		from the command line, which wins.
 *
 *--------------------------------------------------------------------*/

func RxMain() {
	var configFile = pflag.StringP("config", "c", "", "Read settings from this YAML file.")
	var input = pflag.StringP("input", "i", "", "Sample source: serial:<device>, audio, wav:<file> or text:<file>.")
	var baud = pflag.IntP("baud", "b", 0, "Serial port speed.  0 leaves it alone.")
	var rate = pflag.IntP("rate", "r", 0, "Sample rate of audio input or text trace, Hz.")
	var statsInterval = pflag.Duration("stats-interval", 0, "Report serial input sample rate and level this often.  0 turns it off.")
	var output = pflag.StringP("output", "o", "", "Append decoded bits to this file.  strftime conversions such as %Y%m%d are expanded.")
	var format = pflag.StringP("format", "f", "", "Output format: text for '0'/'1' characters, binary for packed bytes.")
	var imageWidth = pflag.Int("image-width", 0, "Also save the received bytes as a grayscale PNG this many pixels wide.")
	var windowLog = pflag.String("window-log", "", "Log every measurement window to this CSV file.")
	var windowLogDir = pflag.String("window-log-dir", "", "Log every measurement window to daily CSV files in this directory.")
	var metricsListen = pflag.String("metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9464.")
	var dnsSD = pflag.Bool("dns-sd", false, "Announce the metrics endpoint with DNS-SD.")
	var listPorts = pflag.Bool("list-ports", false, "List serial ports and exit.")
	var logLevel = pflag.StringP("log-level", "l", "", "Log level: debug, info, warn or error.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Receive two tone FSK data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		printVersion("twrfsk-rx", false)
		os.Exit(0)
	}

	if *listPorts {
		var ports, err = ListSerialPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}

		if len(ports) == 0 {
			fmt.Printf("No serial ports found.\n")
		}

		for _, p := range ports {
			fmt.Printf("%s\n", p.Name)
		}

		return
	}

	var cfg = DefaultConfig()

	if *configFile != "" {
		var loaded, err = LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}

		cfg = loaded
	}

	var set = func(name string, apply func()) {
		if pflag.CommandLine.Changed(name) {
			apply()
		}
	}

	set("input", func() { cfg.Input.Source = *input })
	set("baud", func() { cfg.Input.Baud = *baud })
	set("rate", func() { cfg.Input.SampleRate = *rate })
	set("stats-interval", func() { cfg.Input.StatsInterval = *statsInterval })
	set("output", func() { cfg.Output.Path = *output })
	set("format", func() { cfg.Output.Format = *format })
	set("image-width", func() { cfg.Output.ImageWidth = *imageWidth })
	set("window-log", func() { cfg.Output.WindowLog = *windowLog })
	set("window-log-dir", func() { cfg.Output.WindowLogDir = *windowLogDir })
	set("metrics-listen", func() { cfg.Metrics.Listen = *metricsListen })
	set("dns-sd", func() { cfg.Metrics.DNSSD = *dnsSD })
	set("log-level", func() { cfg.LogLevel = *logLevel })

	var logger, err = NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RunReceiver(ctx, cfg, logger); err != nil {
		logger.Error("Receiver failed", "err", err)
		stop()
		os.Exit(1)
	}
}
