package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsmr-mqtt-bridge/internal/dsmr"
)

// recordingPublisher captures state notifications per sensor name
type recordingPublisher struct {
	notified []string
}

func (p *recordingPublisher) PublishSensorState(ctx context.Context, s *MeterSensor) error {
	p.notified = append(p.notified, s.Name())
	return nil
}

// fakeClock steps time manually for throttle tests
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDispatcher(interval time.Duration) (*Dispatcher, []*MeterSensor, *recordingPublisher, *fakeClock) {
	sensors := []*MeterSensor{
		NewMeterSensor("Power Consumption", DeviceNameEnergy, "E1", dsmr.CurrentElectricityUsage, "kW", "5", 2, true),
		NewMeterSensor("Voltage Phase L1", DeviceNameEnergy, "E1", dsmr.InstantaneousVoltageL1, "V", "5", 2, false),
	}
	pub := &recordingPublisher{}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDispatcher(interval, sensors, pub)
	d.now = clock.now
	return d, sensors, pub, clock
}

func telegramWithUsage(value string) dsmr.Telegram {
	return dsmr.Telegram{
		dsmr.CurrentElectricityUsage: {Value: value, Unit: "kW"},
	}
}

func TestFirstPublishForwardsImmediately(t *testing.T) {
	d, sensors, pub, _ := newTestDispatcher(30 * time.Second)

	d.Publish(context.Background(), telegramWithUsage("1.0"))

	// Only the sensor whose field is present notifies
	assert.Equal(t, []string{"Power Consumption"}, pub.notified)

	v, ok := sensors[0].Value()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestThrottleSuppressesWithinInterval(t *testing.T) {
	d, sensors, pub, clock := newTestDispatcher(30 * time.Second)
	ctx := context.Background()

	d.Publish(ctx, telegramWithUsage("1.0"))
	for i := 1; i <= 29; i++ {
		clock.advance(time.Second)
		d.Publish(ctx, telegramWithUsage("bogus"))
	}

	// Only the t=0 publish forwarded
	assert.Len(t, pub.notified, 1)
	v, _ := sensors[0].Value()
	assert.Equal(t, 1.0, v)
}

func TestThrottleForwardsLatestAfterInterval(t *testing.T) {
	d, sensors, pub, clock := newTestDispatcher(30 * time.Second)
	ctx := context.Background()

	d.Publish(ctx, telegramWithUsage("1.0"))
	for i := 1; i <= 30; i++ {
		clock.advance(time.Second)
		d.Publish(ctx, telegramWithUsage("2.0")) // all suppressed
	}

	clock.advance(time.Second) // t=31
	d.Publish(ctx, telegramWithUsage("3.0"))

	// The t=31 telegram forwarded, carrying its own value, not a queued one
	assert.Len(t, pub.notified, 2)
	v, _ := sensors[0].Value()
	assert.Equal(t, 3.0, v)
}

func TestAllSensorsObserveSameSnapshot(t *testing.T) {
	d, sensors, _, _ := newTestDispatcher(30 * time.Second)

	full := dsmr.Telegram{
		dsmr.CurrentElectricityUsage: {Value: "1.5", Unit: "kW"},
		dsmr.InstantaneousVoltageL1:  {Value: "231.2", Unit: "V"},
	}
	d.Publish(context.Background(), full)

	v0, ok := sensors[0].Value()
	require.True(t, ok)
	assert.Equal(t, 1.5, v0)

	v1, ok := sensors[1].Value()
	require.True(t, ok)
	assert.Equal(t, 231.2, v1)
}

func TestDisconnectSentinelResetsAllSensors(t *testing.T) {
	d, sensors, pub, clock := newTestDispatcher(30 * time.Second)
	ctx := context.Background()

	d.Publish(ctx, dsmr.Telegram{
		dsmr.CurrentElectricityUsage: {Value: "1.5", Unit: "kW"},
		dsmr.InstantaneousVoltageL1:  {Value: "231.2", Unit: "V"},
	})
	require.Len(t, pub.notified, 2)

	clock.advance(31 * time.Second)
	d.Publish(ctx, dsmr.Telegram{})

	// No notifications for the empty telegram, but every value is absent now
	assert.Len(t, pub.notified, 2)
	for _, s := range sensors {
		_, ok := s.Value()
		assert.False(t, ok, s.Name())
	}

	// A new telegram with the field brings the reading back
	clock.advance(31 * time.Second)
	d.Publish(ctx, telegramWithUsage("2.2"))
	v, ok := sensors[0].Value()
	require.True(t, ok)
	assert.Equal(t, 2.2, v)
}

func TestLatestTracksSuppressedTelegrams(t *testing.T) {
	d, _, _, clock := newTestDispatcher(30 * time.Second)
	ctx := context.Background()

	assert.Nil(t, d.lastTelegram())

	d.Publish(ctx, telegramWithUsage("1.0"))
	clock.advance(time.Second)
	suppressed := telegramWithUsage("9.9")
	d.Publish(ctx, suppressed)

	assert.Equal(t, suppressed, d.lastTelegram())
}

func TestDispatcherWithoutPublisher(t *testing.T) {
	sensors := []*MeterSensor{
		NewMeterSensor("Power Consumption", DeviceNameEnergy, "E1", dsmr.CurrentElectricityUsage, "kW", "5", 2, true),
	}
	d := NewDispatcher(30*time.Second, sensors, nil)

	// Must not panic; sensors still get the snapshot
	d.Publish(context.Background(), telegramWithUsage("1.0"))
	v, ok := sensors[0].Value()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}
