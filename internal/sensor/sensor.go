package sensor

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"dsmr-mqtt-bridge/internal/dsmr"
)

// Device names grouping sensors on the Home Assistant side
const (
	DeviceNameEnergy = "DSMR"
	DeviceNameGas    = "Gas Meter"
)

// Frontend icons, selected by keywords in the sensor name
const (
	IconGas          = "mdi:fire"
	IconPower        = "mdi:flash"
	IconPowerFailure = "mdi:flash-off"
	IconSwellSag     = "mdi:pulse"
)

// Tariff states reported for the active-tariff sensor
const (
	TariffLow    = "low"
	TariffNormal = "normal"
)

// StatePublisher is the capability a sensor needs to raise a state-change
// event towards the host. Implemented by the Home Assistant MQTT publisher.
type StatePublisher interface {
	PublishSensorState(ctx context.Context, s *MeterSensor) error
}

// MeterSensor projects one OBIS field out of the most recently stored
// telegram. It holds no telegram of its own between updates beyond the
// shared snapshot the dispatcher hands it, and lives for the life of
// the bridge.
type MeterSensor struct {
	name         string
	obis         dsmr.ObisReference
	unit         string
	deviceName   string
	deviceSerial string
	forceUpdate  bool
	dsmrVersion  string
	precision    int

	mu       sync.RWMutex
	telegram dsmr.Telegram
}

// NewMeterSensor creates a sensor bound to one OBIS reference. unit is
// the unit the meter reports the field in, known from the mapping table
// before any telegram arrives.
func NewMeterSensor(name string, deviceName, deviceSerial string, obis dsmr.ObisReference, unit string, dsmrVersion string, precision int, forceUpdate bool) *MeterSensor {
	return &MeterSensor{
		name:         name,
		obis:         obis,
		unit:         unit,
		deviceName:   deviceName,
		deviceSerial: deviceSerial,
		forceUpdate:  forceUpdate,
		dsmrVersion:  dsmrVersion,
		precision:    precision,
	}
}

// Update stores the new telegram snapshot and reports whether the host
// should be notified: only when this sensor's field is present. The
// snapshot is stored either way, so a disconnect sentinel immediately
// turns Value absent.
func (s *MeterSensor) Update(t dsmr.Telegram) bool {
	s.mu.Lock()
	s.telegram = t
	_, present := t[s.obis]
	s.mu.Unlock()
	return present
}

// object looks up this sensor's field in the stored telegram
func (s *MeterSensor) object() (dsmr.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.telegram == nil {
		return dsmr.Object{}, false
	}
	obj, ok := s.telegram[s.obis]
	return obj, ok
}

// Value returns the current projected reading. The second return is false
// when the field is absent (missing from the telegram, not yet seeded, or
// an unmapped tariff code). Tariff codes translate to low/normal, numeric
// values round to the configured precision, anything else passes through
// raw.
func (s *MeterSensor) Value() (interface{}, bool) {
	obj, ok := s.object()
	if !ok {
		return nil, false
	}

	if s.obis == dsmr.ElectricityActiveTariff {
		tariff := TranslateTariff(obj.Value, s.dsmrVersion)
		if tariff == "" {
			return nil, false
		}
		return tariff, true
	}

	if obj.Value == "" {
		return nil, false
	}
	if f, err := strconv.ParseFloat(obj.Value, 64); err == nil {
		shift := math.Pow10(s.precision)
		return math.Round(f*shift) / shift, true
	}
	return obj.Value, true
}

// Unit returns the unit the reading is reported in. The telegram's
// declared unit wins when present; before the first telegram the static
// mapping unit applies, so discovery can carry it from the start.
func (s *MeterSensor) Unit() string {
	if obj, ok := s.object(); ok && obj.Unit != "" {
		return obj.Unit
	}
	return s.unit
}

// Name returns the human-readable sensor name
func (s *MeterSensor) Name() string {
	return s.name
}

// Obis returns the bound OBIS reference
func (s *MeterSensor) Obis() dsmr.ObisReference {
	return s.obis
}

// DeviceName returns the grouping device (energy meter or gas meter)
func (s *MeterSensor) DeviceName() string {
	return s.deviceName
}

// DeviceSerial returns the serial of the owning device
func (s *MeterSensor) DeviceSerial() string {
	return s.deviceSerial
}

// ForceUpdate reports whether identical successive values still notify.
// Cumulative counters set this so statistics keep flowing.
func (s *MeterSensor) ForceUpdate() bool {
	return s.forceUpdate
}

// ShouldPoll is always false: sensors are push-updated from the stream
func (s *MeterSensor) ShouldPoll() bool {
	return false
}

// UniqueID derives the stable entity id from the device serial and name
func (s *MeterSensor) UniqueID() string {
	return strings.ReplaceAll(s.deviceSerial+"_"+s.name, " ", "_")
}

// Icon picks a frontend icon from keywords in the sensor name
func (s *MeterSensor) Icon() string {
	switch {
	case strings.Contains(s.name, "Sags") || strings.Contains(s.name, "Swells"):
		return IconSwellSag
	case strings.Contains(s.name, "Failure"):
		return IconPowerFailure
	case strings.Contains(s.name, "Power"):
		return IconPower
	case strings.Contains(s.name, "Gas"):
		return IconGas
	default:
		return ""
	}
}

// TranslateTariff converts the raw tariff code to low/normal. Belgian (5B)
// meters assign the codes inversely, so they are swapped before mapping.
// Unknown codes return "".
func TranslateTariff(value, dsmrVersion string) string {
	if dsmrVersion == "5B" {
		switch value {
		case "0001":
			value = "0002"
		case "0002":
			value = "0001"
		}
	}
	switch value {
	case "0001":
		return TariffLow
	case "0002":
		return TariffNormal
	default:
		return ""
	}
}
