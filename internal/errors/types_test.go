package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeConnection, CodeOf(NewConnectionError("open", assert.AnError, "host:2001")))
	assert.Equal(t, CodeMQTT, CodeOf(NewMQTTError("publish state", assert.AnError, "dsmr/x/state")))

	// Codes survive wrapping
	wrapped := fmt.Errorf("session: %w", NewTransportError("read", assert.AnError, "host:2001"))
	assert.Equal(t, CodeTransport, CodeOf(wrapped))

	// Unclassified errors count as mid-session trouble
	assert.Equal(t, CodeTransport, CodeOf(assert.AnError))
}
