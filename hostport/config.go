package hostport

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jangala-dev/tinygo-avrbridge/usart"
)

//go:embed default.yaml
var defaultYAML []byte

// DeviceConfig names one serial device.
type DeviceConfig struct {
	Device string `yaml:"device" validate:"required"`
}

// LineConfig is the line format shared by both devices.
type LineConfig struct {
	Baud     uint32 `yaml:"baud" validate:"required,min=1"`
	DataBits uint8  `yaml:"data_bits" validate:"min=5,max=8"`
	StopBits uint8  `yaml:"stop_bits" validate:"oneof=1 2"`
	Parity   string `yaml:"parity" validate:"oneof=none odd even"`
}

// LogConfig selects log level and an optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

// Config is the host bridge configuration file.
type Config struct {
	Terminal  DeviceConfig `yaml:"terminal"`
	Peer      DeviceConfig `yaml:"peer"`
	Line      LineConfig   `yaml:"line"`
	ForwardCR bool         `yaml:"forward_cr"`
	Duplex    bool         `yaml:"duplex"`
	Log       LogConfig    `yaml:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() Config {
	cfg, err := decodeConfig(bytes.NewReader(defaultYAML), Config{})
	if err != nil {
		panic(fmt.Sprintf("hostport: embedded default config: %v", err))
	}
	return cfg
}

// LoadConfig reads path over the embedded defaults and validates the result. An
// empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("hostport: config: %w", err)
	}
	defer f.Close()

	cfg, err := decodeConfig(f, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("hostport: config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("hostport: config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, base Config) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return base, nil
}

// Validate checks the configuration. The USART driver itself accepts anything; the
// host side rejects values a tty cannot represent before opening a device.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// UsartConfig converts the line section to the driver configuration.
func (l LineConfig) UsartConfig() usart.Config {
	p, _ := ParseParity(l.Parity)
	return usart.Config{
		BaudRate: l.Baud,
		DataBits: l.DataBits,
		StopBits: l.StopBits,
		Parity:   p,
	}
}

// ParseParity accepts none/odd/even and their initials N/O/E, in any case.
func ParseParity(s string) (usart.Parity, error) {
	switch strings.ToLower(s) {
	case "none", "n", "":
		return usart.ParityNone, nil
	case "odd", "o":
		return usart.ParityOdd, nil
	case "even", "e":
		return usart.ParityEven, nil
	}
	return usart.ParityNone, fmt.Errorf("hostport: unsupported parity %q (use none, odd, even)", s)
}
