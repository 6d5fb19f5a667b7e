package errors

import (
	"errors"
	"fmt"
)

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic codes published over MQTT alongside errors
const (
	CodeOK         = 0
	CodeConfig     = 1
	CodeConnection = 2
	CodeTransport  = 3
	CodeDecode     = 4
	CodeMQTT       = 5
)

// BridgeError is the base error type for all bridge errors
type BridgeError struct {
	Op       string        // Operation that failed
	Err      error         // Underlying error
	Severity ErrorSeverity // Error severity
	Code     int           // Diagnostic code for MQTT
}

// DiagnosticCode returns the MQTT diagnostic code. Promoted to every
// error type embedding BridgeError.
func (e *BridgeError) DiagnosticCode() int {
	return e.Code
}

// diagnosable is satisfied by every error carrying a diagnostic code
type diagnosable interface {
	DiagnosticCode() int
}

// CodeOf extracts the diagnostic code from an error chain. A nil error
// is CodeOK; errors outside the bridge taxonomy fall back to CodeTransport,
// the code for trouble of unclassified origin mid-session.
func CodeOf(err error) int {
	if err == nil {
		return CodeOK
	}
	var d diagnosable
	if errors.As(err, &d) {
		return d.DiagnosticCode()
	}
	return CodeTransport
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// ConnectionError represents an open-time failure: unreachable host,
// serial device permission or IO error. Always retryable.
type ConnectionError struct {
	BridgeError
	Endpoint string
}

// NewConnectionError creates a new connection error
func NewConnectionError(op string, err error, endpoint string) *ConnectionError {
	return &ConnectionError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityError,
			Code:     CodeConnection,
		},
		Endpoint: endpoint,
	}
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("[%s] connect %s: %s: %v", e.Severity, e.Endpoint, e.Op, e.Err)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// TransportError represents a failure after the connection was established:
// remote close, socket reset, read error, keep-alive expiry. Treated the same
// as an orderly disconnect by the supervisor.
type TransportError struct {
	BridgeError
	Endpoint string
}

// NewTransportError creates a new transport error
func NewTransportError(op string, err error, endpoint string) *TransportError {
	return &TransportError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityWarning,
			Code:     CodeTransport,
		},
		Endpoint: endpoint,
	}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s] transport %s: %s: %v", e.Severity, e.Endpoint, e.Op, e.Err)
}

// DecodeError represents a malformed or checksum-failed telegram
type DecodeError struct {
	BridgeError
	Line string
}

// NewDecodeError creates a new decode error
func NewDecodeError(op string, err error, line string) *DecodeError {
	return &DecodeError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityWarning,
			Code:     CodeDecode,
		},
		Line: line,
	}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("[%s] decode %q: %s: %v", e.Severity, e.Line, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] decode: %s: %v", e.Severity, e.Op, e.Err)
}

// MQTTError represents a broker-side failure: a publish that the broker
// rejected or a dropped client session.
type MQTTError struct {
	BridgeError
	Topic string
}

// NewMQTTError creates a new MQTT error
func NewMQTTError(op string, err error, topic string) *MQTTError {
	return &MQTTError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityWarning,
			Code:     CodeMQTT,
		},
		Topic: topic,
	}
}

// Error implements the error interface
func (e *MQTTError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] mqtt %s: %s: %v", e.Severity, e.Topic, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] mqtt: %s: %v", e.Severity, e.Op, e.Err)
}

// ConfigError represents configuration errors
type ConfigError struct {
	BridgeError
	Field string
}

// NewConfigError creates a new configuration error
func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		BridgeError: BridgeError{
			Op:       op,
			Err:      err,
			Severity: SeverityCritical, // Config errors are critical
			Code:     CodeConfig,
		},
		Field: field,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] configuration field '%s': %s: %v", e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] configuration: %s: %v", e.Severity, e.Op, e.Err)
}
