package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
device_id: gate-3
serial:
  device: /dev/ttyAMA0
  pace: 500ms
delivery:
  url: mqtt://broker:1883/farm/?topic=tags
  encoding: proto
  format: hex
logship:
  enabled: false
api:
  addr: ":8080"
`

const tomlConfig = `
device_id = "gate-4"

[serial]
baud_rate = 19200

[delivery]
url = "redis://localhost:6379/0?key=reads"
backoff = "3s"

[api]
enabled = false
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Load(writeFile(t, "tagrelay.yaml", yamlConfig)))
	require.Equal(t, "gate-3", c.DeviceID)
	require.Equal(t, "/dev/ttyAMA0", c.Serial.Device)
	require.Equal(t, 9600, c.Serial.BaudRate)
	require.Equal(t, 500*time.Millisecond, c.Serial.Pace.Std())
	require.Equal(t, "proto", c.Delivery.Encoding)
	require.Equal(t, "hex", c.Delivery.Format)
	require.True(t, c.Delivery.Enabled)
	require.False(t, c.LogShip.Enabled)
	require.Equal(t, ":8080", c.API.Addr)
	require.NoError(t, c.Validate())
}

func TestLoadTOML(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Load(writeFile(t, "tagrelay.toml", tomlConfig)))
	require.Equal(t, "gate-4", c.DeviceID)
	require.Equal(t, 19200, c.Serial.BaudRate)
	require.Equal(t, 3*time.Second, c.Delivery.Backoff.Std())
	require.Equal(t, "identity", c.Delivery.Encoding)
	require.False(t, c.API.Enabled)
	require.NoError(t, c.Validate())
}

func TestLoadErrors(t *testing.T) {
	c := NewConfig()
	require.Error(t, c.Load(writeFile(t, "tagrelay.json", "{}")))
	require.Error(t, c.Load(writeFile(t, "bad.yaml", "serial:\n  pace: soon\n")))
	require.Error(t, c.Load(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestFlagsOverrideFile(t *testing.T) {
	c := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--device-id=cli", "--delivery-backoff=2s"}))

	require.NoError(t, c.LoadWithFlags(writeFile(t, "tagrelay.yaml", yamlConfig), fs))
	require.Equal(t, "cli", c.DeviceID)
	require.Equal(t, 2*time.Second, c.Delivery.Backoff.Std())
	require.Equal(t, "/dev/ttyAMA0", c.Serial.Device)
}

func TestValidate(t *testing.T) {
	c := NewConfig()
	c.Serial.Device = ""
	c.Delivery.URL = "udp://x:1"
	c.Delivery.Format = "octal"
	c.Delivery.Encoding = "xml"
	c.LogShip.Level = "LOUD"
	err := c.Validate()
	require.Error(t, err)
	for _, field := range []string{"serial.device", "delivery.url", "delivery.format", "delivery.encoding", "logship.level"} {
		require.Contains(t, err.Error(), field)
	}
}

func TestApplyEnv(t *testing.T) {
	c := NewConfig()
	env := map[string]string{
		"TAGRELAY_DELIVERY_URL": "tcp://collector:6666",
		"TAGRELAY_API_ADDR":     ":9000",
	}
	c.applyEnv(func(name string) string { return env[name] })
	require.Equal(t, "tcp://collector:6666", c.Delivery.URL)
	require.Equal(t, ":9000", c.API.Addr)
	require.NotEmpty(t, c.DeviceID)
}

func TestDefaultIsCopied(t *testing.T) {
	c := NewConfig()
	c.DeviceID = "changed"
	require.NotEqual(t, "changed", Default().DeviceID)
}
