package sensor

import (
	"context"
	"sync"
	"time"

	"dsmr-mqtt-bridge/internal/dsmr"
	"dsmr-mqtt-bridge/internal/logger"
)

// Dispatcher fans incoming telegrams out to the registered sensors, at
// most once per interval (leading-edge trigger, trailing suppression).
// Telegrams published inside the suppression window are dropped, never
// queued, so a forwarded telegram is always the most recent one at that
// instant and every sensor observes the same snapshot.
type Dispatcher struct {
	interval  time.Duration
	sensors   []*MeterSensor
	publisher StatePublisher

	mu            sync.Mutex
	lastForwarded time.Time
	latest        dsmr.Telegram // last published telegram, forwarded or not

	now func() time.Time // injectable clock for tests
}

// NewDispatcher creates a dispatcher forwarding to sensors through
// publisher no more often than once per interval.
func NewDispatcher(interval time.Duration, sensors []*MeterSensor, publisher StatePublisher) *Dispatcher {
	return &Dispatcher{
		interval:  interval,
		sensors:   sensors,
		publisher: publisher,
		now:       time.Now,
	}
}

// Publish offers a telegram for distribution. Called once per incoming
// telegram, potentially several times per second; safe for concurrent use.
func (d *Dispatcher) Publish(ctx context.Context, t dsmr.Telegram) {
	d.mu.Lock()
	now := d.now()
	d.latest = t
	if !d.lastForwarded.IsZero() && now.Sub(d.lastForwarded) < d.interval {
		d.mu.Unlock()
		logger.LogTrace("Telegram suppressed by throttle (%d objects)", len(t))
		return
	}
	d.lastForwarded = now
	d.mu.Unlock()

	d.forward(ctx, t)
}

// forward pushes the telegram into every sensor and notifies the host for
// those whose field is present. Absent fields still get the snapshot so
// their value reads as unknown afterwards.
func (d *Dispatcher) forward(ctx context.Context, t dsmr.Telegram) {
	logger.LogDebug("Forwarding telegram with %d objects to %d sensors", len(t), len(d.sensors))
	for _, s := range d.sensors {
		if !s.Update(t) {
			continue
		}
		if d.publisher == nil {
			continue
		}
		if err := d.publisher.PublishSensorState(ctx, s); err != nil {
			logger.LogError("Error publishing state for %s: %v", s.Name(), err)
		}
	}
}

// lastTelegram returns the most recently published telegram, whether or
// not it was forwarded. Nil before the first publish.
func (d *Dispatcher) lastTelegram() dsmr.Telegram {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}
