// Package config holds the static configuration of the device.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/tagrelay/pkg/arena"
	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/serial"
	"github.com/robotalks/tagrelay/pkg/tag"
	"github.com/robotalks/tagrelay/pkg/transport"
)

// AppID scopes the machine derived device id.
const AppID = "tagrelay"

// Config is the device configuration.
type Config struct {
	DeviceID string         `yaml:"device_id" toml:"device_id"`
	Serial   SerialConfig   `yaml:"serial" toml:"serial"`
	Arena    ArenaConfig    `yaml:"arena" toml:"arena"`
	Delivery DeliveryConfig `yaml:"delivery" toml:"delivery"`
	LogShip  LogShipConfig  `yaml:"logship" toml:"logship"`
	API      APIConfig      `yaml:"api" toml:"api"`
}

// SerialConfig configures the reader's serial line.
type SerialConfig struct {
	Device   string   `yaml:"device" toml:"device"`
	BaudRate int      `yaml:"baud_rate" toml:"baud_rate"`
	Pace     Duration `yaml:"pace" toml:"pace"`
}

// ArenaConfig sizes the frame buffer arena.
type ArenaConfig struct {
	Size int `yaml:"size" toml:"size"`
}

// DeliveryConfig configures tag delivery.
type DeliveryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	// Format is the identity rendering, "decimal" or "hex".
	Format string `yaml:"format" toml:"format"`
	// Encoding is the payload encoding, "identity", "line" or "proto".
	Encoding string   `yaml:"encoding" toml:"encoding"`
	Backoff  Duration `yaml:"backoff" toml:"backoff"`
}

// LogShipConfig configures log shipping.
type LogShipConfig struct {
	Enabled    bool     `yaml:"enabled" toml:"enabled"`
	URL        string   `yaml:"url" toml:"url"`
	Level      string   `yaml:"level" toml:"level"`
	BufferSize int      `yaml:"buffer_size" toml:"buffer_size"`
	MaxChunk   int      `yaml:"max_chunk" toml:"max_chunk"`
	Backoff    Duration `yaml:"backoff" toml:"backoff"`
}

// APIConfig configures the inbound responder.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

var defaultConfig = Config{
	DeviceID: AppID,
	Serial: SerialConfig{
		Device:   "/dev/ttyUSB0",
		BaudRate: serial.DefaultBaudRate,
		Pace:     Duration(time.Second),
	},
	Arena: ArenaConfig{Size: arena.DefaultSize},
	Delivery: DeliveryConfig{
		Enabled:  true,
		URL:      "tcp://localhost:6666",
		Format:   "decimal",
		Encoding: "identity",
		Backoff:  Duration(time.Second),
	},
	LogShip: LogShipConfig{
		Enabled:    true,
		URL:        "tcp://localhost:6667",
		Level:      "INFO",
		BufferSize: 1024,
		MaxChunk:   1024,
		Backoff:    Duration(time.Second),
	},
	API: APIConfig{
		Enabled: true,
		Addr:    ":6668",
	},
}

func init() {
	if id, err := machineid.ProtectedID(AppID); err == nil {
		defaultConfig.DeviceID = id
	}
	defaultConfig.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"TAGRELAY_DEVICE_ID", &c.DeviceID},
		{"TAGRELAY_SERIAL_DEVICE", &c.Serial.Device},
		{"TAGRELAY_DELIVERY_URL", &c.Delivery.URL},
		{"TAGRELAY_LOGSHIP_URL", &c.LogShip.URL},
		{"TAGRELAY_API_ADDR", &c.API.Addr},
	}
	for _, o := range overrides {
		if val := getenv(o.name); val != "" {
			*o.dst = val
		}
	}
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// AddFlags binds command line flags to c.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DeviceID, "device-id", c.DeviceID, "Device ID reported with tag events.")
	fs.StringVar(&c.Serial.Device, "serial", c.Serial.Device, "Serial device of the tag reader.")
	fs.IntVar(&c.Serial.BaudRate, "baud", c.Serial.BaudRate, "Serial baud rate.")
	fs.DurationVar((*time.Duration)(&c.Serial.Pace), "pace", time.Duration(c.Serial.Pace), "Pause after each tag read.")
	fs.IntVar(&c.Arena.Size, "arena-size", c.Arena.Size, "Size of the frame buffer arena in bytes.")
	fs.BoolVar(&c.Delivery.Enabled, "delivery", c.Delivery.Enabled, "Enable tag delivery.")
	fs.StringVar(&c.Delivery.URL, "delivery-url", c.Delivery.URL, "Tag collector URL (tcp, mqtt, redis, ws).")
	fs.StringVar(&c.Delivery.Format, "id-format", c.Delivery.Format, "Identity rendering: decimal or hex.")
	fs.StringVar(&c.Delivery.Encoding, "encoding", c.Delivery.Encoding, "Payload encoding: identity, line or proto.")
	fs.DurationVar((*time.Duration)(&c.Delivery.Backoff), "delivery-backoff", time.Duration(c.Delivery.Backoff), "Pause before reconnecting to the tag collector.")
	fs.BoolVar(&c.LogShip.Enabled, "logship", c.LogShip.Enabled, "Enable log shipping.")
	fs.StringVar(&c.LogShip.URL, "logship-url", c.LogShip.URL, "Log collector URL.")
	fs.StringVar(&c.LogShip.Level, "logship-level", c.LogShip.Level, "Most verbose level shipped: ERROR, WARN, INFO, DEBUG, TRACE.")
	fs.IntVar(&c.LogShip.BufferSize, "logship-buffer", c.LogShip.BufferSize, "Log buffer size in bytes.")
	fs.BoolVar(&c.API.Enabled, "api", c.API.Enabled, "Enable the inbound responder.")
	fs.StringVar(&c.API.Addr, "api-addr", c.API.Addr, "Inbound responder listen address.")
}

// Load decodes a YAML or TOML file over c, by file extension.
func (c *Config) Load(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	return nil
}

// LoadWithFlags loads path and then reapplies the flags set on the command
// line, so flags take precedence over the file.
func (c *Config) LoadWithFlags(path string, fs *pflag.FlagSet) error {
	changed := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	if err := c.Load(path); err != nil {
		return err
	}
	for name, val := range changed {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs fx.AggregatedError
	if c.Serial.Device == "" {
		errs.Add(fmt.Errorf("serial.device is required"))
	}
	if c.Serial.BaudRate <= 0 {
		errs.Add(fmt.Errorf("serial.baud_rate must be positive"))
	}
	if c.Arena.Size < 0 {
		errs.Add(fmt.Errorf("arena.size must not be negative"))
	}
	if c.Delivery.Enabled {
		if _, err := transport.NewDialer(c.Delivery.URL); err != nil {
			errs.Add(fmt.Errorf("delivery.url: %w", err))
		}
		if _, err := tag.ParseIDFormat(c.Delivery.Format); err != nil {
			errs.Add(fmt.Errorf("delivery.format: %w", err))
		}
		switch c.Delivery.Encoding {
		case "", "identity", "line", "proto":
		default:
			errs.Add(fmt.Errorf("delivery.encoding: unknown encoding %q", c.Delivery.Encoding))
		}
	}
	if c.LogShip.Enabled {
		if _, err := transport.NewDialer(c.LogShip.URL); err != nil {
			errs.Add(fmt.Errorf("logship.url: %w", err))
		}
		if c.LogShip.MaxChunk > c.Arena.Size {
			errs.Add(fmt.Errorf("logship.max_chunk exceeds arena.size"))
		}
	}
	if _, err := logging.ParseLevel(c.LogShip.Level); err != nil {
		errs.Add(fmt.Errorf("logship.level: %w", err))
	}
	if c.API.Enabled && c.API.Addr == "" {
		errs.Add(fmt.Errorf("api.addr is required"))
	}
	return errs.Aggregate()
}

// Duration is a time.Duration written as a string like "1s" in files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
