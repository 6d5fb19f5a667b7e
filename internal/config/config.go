package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dsmr-mqtt-bridge/internal/dsmr"
	"dsmr-mqtt-bridge/internal/logger"
)

// Defaults applied when the configuration omits a value
const (
	DefaultDSMRVersion        = "2.2"
	DefaultReconnectInterval  = 30 // seconds
	DefaultTimeBetweenUpdates = 30 // seconds
	DefaultPrecision          = 2  // decimals
	DefaultTCPPort            = 2001
	DefaultMQTTRetryDelay     = 5000 // milliseconds
)

// Config represents the complete application configuration
type Config struct {
	Connection    ConnectionConfig     `yaml:"connection"`
	MQTT          MQTTConfig           `yaml:"mqtt"`
	HomeAssistant HAConfig             `yaml:"homeassistant"`
	Logging       logger.LoggingConfig `yaml:"logging"`
}

// ConnectionConfig contains the meter connection settings
type ConnectionConfig struct {
	Device      string `yaml:"device"` // serial device path
	Host        string `yaml:"host"`   // TCP host; takes precedence over device
	Port        int    `yaml:"port"`
	DSMRVersion string `yaml:"dsmr_version"`

	ReconnectInterval  int `yaml:"reconnect_interval"`   // seconds between reconnect attempts
	TimeBetweenUpdates int `yaml:"time_between_updates"` // minimum seconds between sensor updates
	Precision          int `yaml:"precision"`            // decimals for numeric readings

	SerialID    string `yaml:"serial_id"`     // energy meter serial
	SerialIDGas string `yaml:"serial_id_gas"` // gas meter serial, optional
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	ClientID   string `yaml:"client_id"`
	RetryDelay int    `yaml:"retry_delay"` // Delay between connection retries in milliseconds
}

// HAConfig contains Home Assistant MQTT Discovery settings
type HAConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	StateTopic      string `yaml:"state_topic"` // base topic for sensor states
	StatusTopic     string `yaml:"status_topic"`
	DiagnosticTopic string `yaml:"diagnostic_topic"`
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
}

// LoadConfig loads configuration from specified file
func LoadConfig(configPath string) (*Config, error) {
	// Try to find configuration file in different locations
	paths := []string{
		configPath,
		"/etc/dsmr-mqtt-bridge/config.yaml",
		"/etc/dsmr-mqtt-bridge.yaml",
		"./config.yaml",
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file from any of the locations: %v. Last error: %w", paths, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration from %s: %w", usedPath, err)
	}

	config.ApplyDefaults()

	// Configuration validation
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", usedPath, err)
	}

	return &config, nil
}

// ApplyDefaults fills omitted values with their defaults
func (c *Config) ApplyDefaults() {
	if c.Connection.DSMRVersion == "" {
		c.Connection.DSMRVersion = DefaultDSMRVersion
	}
	if c.Connection.ReconnectInterval <= 0 {
		c.Connection.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Connection.TimeBetweenUpdates <= 0 {
		c.Connection.TimeBetweenUpdates = DefaultTimeBetweenUpdates
	}
	if c.Connection.Precision <= 0 {
		c.Connection.Precision = DefaultPrecision
	}
	if c.Connection.Host != "" && c.Connection.Port <= 0 {
		c.Connection.Port = DefaultTCPPort
	}
	if c.MQTT.RetryDelay <= 0 {
		c.MQTT.RetryDelay = DefaultMQTTRetryDelay
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "dsmr_mqtt_bridge"
	}
	if c.HomeAssistant.DiscoveryPrefix == "" {
		c.HomeAssistant.DiscoveryPrefix = "homeassistant"
	}
	if c.HomeAssistant.StateTopic == "" {
		c.HomeAssistant.StateTopic = "dsmr"
	}
	if c.HomeAssistant.StatusTopic == "" {
		c.HomeAssistant.StatusTopic = "dsmr/bridge/status"
	}
	if c.HomeAssistant.DiagnosticTopic == "" {
		c.HomeAssistant.DiagnosticTopic = "dsmr/bridge/diagnostic"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Connection.Device == "" && c.Connection.Host == "" {
		return fmt.Errorf("either a serial device or a TCP host must be specified")
	}
	if c.Connection.Device != "" && c.Connection.Host != "" {
		return fmt.Errorf("serial device and TCP host are mutually exclusive")
	}
	if c.Connection.Host != "" && c.Connection.Port <= 0 {
		return fmt.Errorf("TCP port must be positive")
	}
	if !dsmr.ValidVersion(c.Connection.DSMRVersion) {
		return fmt.Errorf("unknown DSMR version %q, must be one of %v", c.Connection.DSMRVersion, dsmr.Versions)
	}
	if c.Connection.SerialID == "" {
		return fmt.Errorf("energy meter serial_id is not specified")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker is not specified")
	}
	if c.MQTT.Port <= 0 {
		return fmt.Errorf("MQTT port must be positive")
	}
	return nil
}
