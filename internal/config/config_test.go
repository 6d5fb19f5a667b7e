package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a temp yaml file and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

const validConfig = `
connection:
  device: "/dev/ttyUSB0"
  dsmr_version: "5"
  serial_id: "1234567890"
  serial_id_gas: "0987654321"
mqtt:
  broker: "localhost"
  port: 1883
  username: "test_user"
  password: "test_pass"
logging:
  level: "debug"
`

func TestConfigLoading(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Connection.Device)
	assert.Equal(t, "5", cfg.Connection.DSMRVersion)
	assert.Equal(t, "1234567890", cfg.Connection.SerialID)
	assert.Equal(t, "localhost", cfg.MQTT.Broker)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
connection:
  host: "meter.local"
  dsmr_version: "5"
  serial_id: "1234567890"
mqtt:
  broker: "localhost"
  port: 1883
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultTCPPort, cfg.Connection.Port)
	assert.Equal(t, DefaultReconnectInterval, cfg.Connection.ReconnectInterval)
	assert.Equal(t, DefaultTimeBetweenUpdates, cfg.Connection.TimeBetweenUpdates)
	assert.Equal(t, DefaultPrecision, cfg.Connection.Precision)
	assert.Equal(t, "homeassistant", cfg.HomeAssistant.DiscoveryPrefix)
	assert.NotEmpty(t, cfg.HomeAssistant.StatusTopic)
	assert.NotEmpty(t, cfg.MQTT.ClientID)
}

func TestConfigDefaultVersion(t *testing.T) {
	path := writeConfig(t, `
connection:
  device: "/dev/ttyUSB0"
  serial_id: "1234567890"
mqtt:
  broker: "localhost"
  port: 1883
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDSMRVersion, cfg.Connection.DSMRVersion)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing transport",
			content: `
connection:
  serial_id: "123"
mqtt:
  broker: "localhost"
  port: 1883
`,
			wantErr: "serial device or a TCP host",
		},
		{
			name: "both transports",
			content: `
connection:
  device: "/dev/ttyUSB0"
  host: "meter.local"
  serial_id: "123"
mqtt:
  broker: "localhost"
  port: 1883
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "unknown version",
			content: `
connection:
  device: "/dev/ttyUSB0"
  dsmr_version: "9"
  serial_id: "123"
mqtt:
  broker: "localhost"
  port: 1883
`,
			wantErr: "unknown DSMR version",
		},
		{
			name: "missing serial id",
			content: `
connection:
  device: "/dev/ttyUSB0"
mqtt:
  broker: "localhost"
  port: 1883
`,
			wantErr: "serial_id",
		},
		{
			name: "missing broker",
			content: `
connection:
  device: "/dev/ttyUSB0"
  serial_id: "123"
mqtt:
  port: 1883
`,
			wantErr: "MQTT broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
