package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dsmr-mqtt-bridge/internal/config"
	"dsmr-mqtt-bridge/internal/errors"
	"dsmr-mqtt-bridge/internal/logger"
	"dsmr-mqtt-bridge/internal/sensor"
)

// Publisher responsible for publishing sensor data to Home Assistant.
// It implements sensor.StatePublisher, so sensors raise state changes
// through it without knowing about MQTT.
type Publisher struct {
	client     mqtt.Client
	config     *config.HAConfig
	mqttConfig *config.MQTTConfig
}

// NewPublisher creates a new publisher for Home Assistant
func NewPublisher(cfg *config.MQTTConfig, haCfg *config.HAConfig) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	// Broker marks the bridge offline if the process dies uncleanly
	opts.SetWill(haCfg.StatusTopic, "offline", 0, true)

	publisher := &Publisher{
		config:     haCfg,
		mqttConfig: cfg,
	}

	// Callback for connection
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.LogInfo("✅ HA Publisher connected to MQTT broker")
	})

	// Callback for disconnection
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.LogError("HA Publisher disconnected: %v", err)
	})

	publisher.client = mqtt.NewClient(opts)
	return publisher
}

// Connect connects the publisher to the broker with infinite retry
func (p *Publisher) Connect(ctx context.Context) error {
	retryDelay := time.Duration(p.mqttConfig.RetryDelay) * time.Millisecond
	if retryDelay == 0 {
		retryDelay = 5000 * time.Millisecond // Default 5 seconds
	}

	attempt := 1
	for {
		logger.LogDebug("Attempting to connect HA publisher to MQTT broker (attempt %d)...", attempt)

		if token := p.client.Connect(); token.Wait() && token.Error() != nil {
			logger.LogError("HA Publisher connection failed (attempt %d): %v", attempt, token.Error())
			logger.LogInfo("⏳ Retrying in %.0f seconds...", retryDelay.Seconds())

			// Wait for retry delay or context cancellation
			select {
			case <-ctx.Done():
				return fmt.Errorf("HA publisher connection cancelled: %w", ctx.Err())
			case <-time.After(retryDelay):
				attempt++
				continue
			}
		}

		// Connection successful, wait for full connection establishment
		connected := false
		for i := 0; i < 50; i++ {
			if p.client.IsConnected() {
				connected = true
				break
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("HA publisher connection cancelled during establishment: %w", ctx.Err())
			case <-time.After(100 * time.Millisecond):
			}
		}

		if connected {
			logger.LogInfo("✅ HA Publisher connected to MQTT broker after %d attempts", attempt)
			return nil
		}

		// Connection establishment timeout
		logger.LogWarn("HA Publisher connection establishment timeout (attempt %d)", attempt)
		logger.LogInfo("⏳ Retrying in %.0f seconds...", retryDelay.Seconds())

		select {
		case <-ctx.Done():
			return fmt.Errorf("HA publisher connection cancelled during timeout: %w", ctx.Err())
		case <-time.After(retryDelay):
			attempt++
			continue
		}
	}
}

// Disconnect disconnects the publisher
func (p *Publisher) Disconnect() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// stateTopic is the per-sensor MQTT topic the state is published on
func (p *Publisher) stateTopic(s *sensor.MeterSensor) string {
	return fmt.Sprintf("%s/%s/state", p.config.StateTopic, strings.ToLower(s.UniqueID()))
}

// PublishSensorDiscovery publishes discovery configuration for a sensor.
// Sensors are grouped into the energy or gas device by the owning meter
// serial, so Home Assistant shows two devices for a dual-meter setup.
func (p *Publisher) PublishSensorDiscovery(ctx context.Context, s *sensor.MeterSensor) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publisher is not connected")
	}

	discoveryTopic := fmt.Sprintf("%s/sensor/%s/config",
		p.config.DiscoveryPrefix, strings.ToLower(s.UniqueID()))

	cfg := SensorConfig{
		Name:              s.Name(),
		UniqueID:          s.UniqueID(),
		StateTopic:        p.stateTopic(s),
		UnitOfMeasurement: s.Unit(),
		Icon:              s.Icon(),
		ForceUpdate:       s.ForceUpdate(),
		Device: DeviceInfo{
			Name:         s.DeviceName(),
			Identifiers:  []string{s.DeviceSerial()},
			Manufacturer: p.config.Manufacturer,
			Model:        p.config.Model,
		},
		ValueTemplate:       "{{ value_json.value }}",
		AvailabilityTopic:   p.config.StatusTopic,
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}
	if logger.IsDebugEnabled() {
		logger.LogDebug("Discovery payload for %s: %s", s.Name(), configJSON)
	}

	// Publish configuration, retained so HA rediscovers after restarts
	token := p.client.Publish(discoveryTopic, 0, true, configJSON)
	if token.Wait() && token.Error() != nil {
		return errors.NewMQTTError("publish discovery", token.Error(), discoveryTopic)
	}

	return nil
}

// PublishSensorState publishes the current reading of a sensor.
// Implements sensor.StatePublisher. An absent value publishes a null
// state, which Home Assistant renders as unknown.
func (p *Publisher) PublishSensorState(ctx context.Context, s *sensor.MeterSensor) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publisher is not connected")
	}

	value, _ := s.Value()
	state := SensorState{
		Value:     value,
		Unit:      s.Unit(),
		Timestamp: time.Now(),
	}

	dataJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error serializing data: %w", err)
	}

	token := p.client.Publish(p.stateTopic(s), 0, false, dataJSON)
	if token.Wait() && token.Error() != nil {
		return errors.NewMQTTError("publish state", token.Error(), p.stateTopic(s))
	}

	return nil
}

// PublishAllDiscoveries publishes discovery configurations for all sensors
func (p *Publisher) PublishAllDiscoveries(ctx context.Context, sensors []*sensor.MeterSensor) error {
	for _, s := range sensors {
		if err := p.PublishSensorDiscovery(ctx, s); err != nil {
			logger.LogError("Error publishing discovery for %s: %v", s.Name(), err)
			continue
		}

		// Small pause between publications
		time.Sleep(100 * time.Millisecond)
	}

	return nil
}

// PublishStatus publishes the bridge status (online/offline) to Home Assistant
func (p *Publisher) PublishStatus(ctx context.Context, status string) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publisher not connected")
	}

	token := p.client.Publish(p.config.StatusTopic, 0, true, status)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if token.Error() != nil {
			return errors.NewMQTTError("publish status", token.Error(), p.config.StatusTopic)
		}
	}

	logger.LogInfo("📡 Published bridge status: %s", status)
	return nil
}

// PublishDiagnostic publishes diagnostic information to Home Assistant
func (p *Publisher) PublishDiagnostic(ctx context.Context, code int, message string) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("publisher not connected")
	}

	diagnostic := map[string]interface{}{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(diagnostic)
	if err != nil {
		return fmt.Errorf("error marshaling diagnostic: %w", err)
	}

	token := p.client.Publish(p.config.DiagnosticTopic, 0, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if token.Error() != nil {
			return errors.NewMQTTError("publish diagnostic", token.Error(), p.config.DiagnosticTopic)
		}
	}

	return nil
}

// PublishStatusOnline publishes "online" status - convenience method
func (p *Publisher) PublishStatusOnline(ctx context.Context) error {
	return p.PublishStatus(ctx, "online")
}

// PublishStatusOffline publishes "offline" status - convenience method
func (p *Publisher) PublishStatusOffline(ctx context.Context) error {
	return p.PublishStatus(ctx, "offline")
}

// SensorConfig configuration for a Home Assistant sensor
type SensorConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	StateTopic          string     `json:"state_topic"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	ForceUpdate         bool       `json:"force_update,omitempty"`
	Device              DeviceInfo `json:"device"`
	ValueTemplate       string     `json:"value_template"`
	AvailabilityTopic   string     `json:"availability_topic"`
	PayloadAvailable    string     `json:"payload_available"`
	PayloadNotAvailable string     `json:"payload_not_available"`
}

// DeviceInfo information about the device
type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// SensorState state of a sensor. A nil value serializes to null and shows
// as unknown in Home Assistant, which is the disconnect presentation.
type SensorState struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
