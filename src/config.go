package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Read receiver settings from a YAML file.
 *
 * Description:	Everything has a default, so the file only needs what
 *		differs.  Command line options are applied on top of it.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config is the complete receiver configuration.
type Config struct {
	Demod    DemodConfig   `yaml:"demod"`
	Input    InputConfig   `yaml:"input"`
	Output   OutputConfig  `yaml:"output"`
	Buttons  ButtonConfig  `yaml:"buttons"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// InputConfig selects where samples come from.
type InputConfig struct {
	Source     string `yaml:"source"`      // serial:<device>, audio, wav:<file> or text:<file>.
	Baud       int    `yaml:"baud"`        // Serial only.  0 leaves the port alone.
	SampleRate int    `yaml:"sample_rate"` // Audio capture and text traces, Hz.

	// How often live serial input reports its sample rate and level.  0 turns it off.
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// OutputConfig says where decoded bits go.
type OutputConfig struct {
	Path         string `yaml:"path"`   // May contain strftime conversions.
	Format       string `yaml:"format"` // text or binary.
	ImageWidth   int    `yaml:"image_width"`
	WindowLog    string `yaml:"window_log"`
	WindowLogDir string `yaml:"window_log_dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen      string `yaml:"listen"` // Empty to disable.
	DNSSD       bool   `yaml:"dns_sd"`
	ServiceName string `yaml:"service_name"`
}

// Input kinds.
const (
	SourceSerial = "serial"
	SourceAudio  = "audio"
	SourceWAV    = "wav"
	SourceText   = "text"
)

// Output formats.
const (
	FormatText   = "text"
	FormatBinary = "binary"
)

// DefaultConfig returns a configuration that receives from the first USB
// serial board and appends to received_image.bin.
func DefaultConfig() *Config {
	return &Config{
		Demod: DefaultDemodConfig(),
		Input: InputConfig{
			Source:        "serial:/dev/ttyACM0",
			Baud:          115200,
			SampleRate:    10000,
			StatsInterval: 100 * time.Second,
		},
		Output: OutputConfig{
			Path:         "received_image.bin",
			Format:       FormatText,
			ImageWidth:   0,
			WindowLog:    "",
			WindowLogDir: "",
		},
		Buttons: ButtonConfig{
			Chip:     "gpiochip0",
			Lines:    nil,
			Debounce: 20 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Listen:      "",
			DNSSD:       false,
			ServiceName: "twrfsk",
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file over the defaults.  A missing file gives
// the defaults.
func LoadConfig(filename string) (*Config, error) {
	var cfg = DefaultConfig()

	var data, err = os.ReadFile(filename) //nolint:gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	var data, err = yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Fields that can't usefully be zero go back to their defaults when a file
// sets them empty.
func (c *Config) ensureDefaults() {
	var def = DefaultConfig()

	if c.Demod.SampleInterval == 0 {
		c.Demod.SampleInterval = def.Demod.SampleInterval
	}

	if c.Demod.WindowDuration == 0 {
		c.Demod.WindowDuration = def.Demod.WindowDuration
	}

	if c.Demod.AverageWindow == 0 {
		c.Demod.AverageWindow = def.Demod.AverageWindow
	}

	if c.Demod.FlushBits == 0 {
		c.Demod.FlushBits = def.Demod.FlushBits
	}

	if c.Input.Source == "" {
		c.Input.Source = def.Input.Source
	}

	if c.Input.SampleRate == 0 {
		c.Input.SampleRate = def.Input.SampleRate
	}

	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}

	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}

	if c.Buttons.Chip == "" {
		c.Buttons.Chip = def.Buttons.Chip
	}

	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = def.Metrics.ServiceName
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if err := c.Demod.Validate(); err != nil {
		return err
	}

	if _, _, err := ParseSource(c.Input.Source); err != nil {
		return err
	}

	if c.Input.StatsInterval < 0 {
		return fmt.Errorf("%w: stats interval must not be negative, got %s", ErrInvalidConfig, c.Input.StatsInterval)
	}

	if c.Input.SampleRate <= 0 {
		return fmt.Errorf("%w: input sample rate must be positive, got %d", ErrInvalidConfig, c.Input.SampleRate)
	}

	if c.Output.Format != FormatText && c.Output.Format != FormatBinary {
		return fmt.Errorf("%w: output format must be %s or %s, got %q",
			ErrInvalidConfig, FormatText, FormatBinary, c.Output.Format)
	}

	if c.Output.Format == FormatBinary && c.Demod.FlushBits%8 != 0 {
		return fmt.Errorf("%w: binary output needs a flush size that is a multiple of 8, got %d",
			ErrInvalidConfig, c.Demod.FlushBits)
	}

	if c.Output.ImageWidth < 0 {
		return fmt.Errorf("%w: image width must not be negative", ErrInvalidConfig)
	}

	if c.Output.WindowLog != "" && c.Output.WindowLogDir != "" {
		return fmt.Errorf("%w: use either a window log file or a window log directory, not both", ErrInvalidConfig)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}

	return nil
}

// ParseSource splits an input source into its kind and argument.
func ParseSource(source string) (string, string, error) {
	var kind, arg, _ = strings.Cut(source, ":")

	switch kind {
	case SourceAudio:
		if arg != "" {
			return "", "", fmt.Errorf("%w: audio input takes no argument, got %q", ErrInvalidConfig, source)
		}
	case SourceSerial, SourceWAV, SourceText:
		if arg == "" {
			return "", "", fmt.Errorf("%w: %s input needs a path, e.g. %s:/dev/ttyACM0", ErrInvalidConfig, kind, kind)
		}
	default:
		return "", "", fmt.Errorf("%w: unknown input %q, want serial:<device>, audio, wav:<file> or text:<file>",
			ErrInvalidConfig, source)
	}

	return kind, arg, nil
}
