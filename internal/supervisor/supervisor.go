package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"dsmr-mqtt-bridge/internal/dsmr"
	"dsmr-mqtt-bridge/internal/errors"
	"dsmr-mqtt-bridge/internal/logger"
)

// State of the supervisor loop. Exposed for tests and diagnostics only;
// the loop itself never branches on it.
type State int32

const (
	StateStopped State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateClosing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// TelegramSource is one live meter connection as the supervisor sees it:
// closable, and observable until fully terminated.
type TelegramSource interface {
	Close()
	WaitClosed(ctx context.Context) error
	Err() error
}

// SourceFactory opens a new connection. The factory binds the telegram
// handler at wiring time, so the supervisor never touches telegrams that
// arrive while connected.
type SourceFactory func(ctx context.Context) (TelegramSource, error)

// TelegramSink receives the disconnect sentinel the supervisor publishes
type TelegramSink interface {
	Publish(ctx context.Context, t dsmr.Telegram)
}

// DiagnosticSink receives coded diagnostics on connection trouble.
// Implemented by the Home Assistant MQTT publisher; optional.
type DiagnosticSink interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// closeGrace bounds how long a cancelled supervisor waits for the
// transport to finish terminating before giving up the wait.
const closeGrace = 5 * time.Second

// Supervisor drives one meter connection forever: connect, consume until
// the stream dies, publish the disconnect sentinel, sleep, retry. It ends
// only on context cancellation; transport trouble is logged, never fatal.
type Supervisor struct {
	factory           SourceFactory
	sink              TelegramSink
	diag              DiagnosticSink
	stopBus           *StopBus
	reconnectInterval time.Duration
	state             atomic.Int32
}

// New creates a supervisor. reconnectInterval is the fixed backoff applied
// after both failed opens and dropped sessions. diag may be nil; connection
// trouble is then only logged.
func New(factory SourceFactory, sink TelegramSink, diag DiagnosticSink, stopBus *StopBus, reconnectInterval time.Duration) *Supervisor {
	return &Supervisor{
		factory:           factory,
		sink:              sink,
		diag:              diag,
		stopBus:           stopBus,
		reconnectInterval: reconnectInterval,
	}
}

// publishDiagnostic reports connection trouble on the diagnostic topic
// with the code carried by the causing error
func (s *Supervisor) publishDiagnostic(ctx context.Context, cause error, message string) {
	if s.diag == nil {
		return
	}
	if err := s.diag.PublishDiagnostic(ctx, errors.CodeOf(cause), message); err != nil {
		logger.LogDebug("Error publishing diagnostic: %v", err)
	}
}

// State returns the current loop state
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Run executes the supervision loop until ctx is cancelled. Any open
// transport is closed and awaited before Run returns, on every exit path.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.setState(StateStopped)

	for {
		s.setState(StateConnecting)

		source, err := s.factory(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // cancelled mid-connect, nothing opened
			}
			if errors.IsConnectionError(err) {
				logger.LogError("Error connecting to DSMR: %v", err)
			} else {
				logger.LogError("Unexpected error opening DSMR connection: %v", err)
			}
			s.publishDiagnostic(ctx, err, fmt.Sprintf("DSMR connection failed: %v", err))
			s.setState(StateDisconnected)
		} else {
			// Close the transport from the global-stop hook only while the
			// supervisor is not closing it itself; the deregistrations below
			// keep the two close paths mutually exclusive.
			unsubscribe := s.stopBus.Subscribe(source.Close)
			s.setState(StateConnected)

			if waitErr := source.WaitClosed(ctx); waitErr != nil {
				// Cancelled while connected: orderly teardown, then exit.
				s.setState(StateClosing)
				unsubscribe()
				source.Close()
				graceCtx, cancel := context.WithTimeout(context.Background(), closeGrace)
				source.WaitClosed(graceCtx)
				cancel()
				return
			}

			// Stream ended on its own: transport error or remote close.
			unsubscribe()
			if cause := source.Err(); cause != nil {
				logger.LogWarn("DSMR connection lost: %v", cause)
				s.publishDiagnostic(ctx, cause, fmt.Sprintf("DSMR connection lost: %v", cause))
			} else {
				logger.LogInfo("DSMR connection closed")
			}

			// Reflect the disconnect in every sensor by publishing the
			// empty telegram; stale last-good values would hide the outage.
			s.sink.Publish(ctx, dsmr.Telegram{})
			s.setState(StateDisconnected)
		}

		logger.LogInfo("Reconnecting to DSMR in %v", s.reconnectInterval)
		select {
		case <-ctx.Done():
			return // cancelled mid-sleep, no further connect attempts
		case <-time.After(s.reconnectInterval):
		}
	}
}
