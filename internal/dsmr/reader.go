package dsmr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"dsmr-mqtt-bridge/internal/errors"
	"dsmr-mqtt-bridge/internal/logger"
)

// tcpKeepAliveInterval is how long a TCP connection may stay silent before
// it is treated as dead. DSMR meters emit a telegram every 1-10 seconds, so
// a full minute without a byte means the peer is gone.
const tcpKeepAliveInterval = 60 * time.Second

// dialTimeout bounds the TCP connect attempt
const dialTimeout = 10 * time.Second

// ConnectionConfig selects the transport: a serial device path or a
// host:port pair, plus the DSMR version that drives line parameters
// and the decoding dialect.
type ConnectionConfig struct {
	Device  string // serial device path, e.g. /dev/ttyUSB0
	Host    string // TCP host; takes precedence when set
	Port    int
	Version string
}

// Endpoint returns a loggable description of the configured transport
func (c ConnectionConfig) Endpoint() string {
	if c.Host != "" {
		return fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	return c.Device
}

// TelegramHandler receives every decoded telegram as it arrives
type TelegramHandler func(Telegram)

// Reader owns one open P1 connection and turns its byte stream into
// decoded telegrams delivered through the handler. A Reader reads until
// the transport fails or Close is called; it is not restartable.
type Reader struct {
	conn      io.ReadWriteCloser
	decoder   *Decoder
	handler   TelegramHandler
	endpoint  string
	keepAlive time.Duration // >0 only for TCP

	closeOnce sync.Once
	closing   bool
	mu        sync.Mutex
	closed    chan struct{}
	err       error
}

// Open connects to the meter described by cfg and starts delivering
// telegrams to handler. Open-time failures return a *errors.ConnectionError.
func Open(ctx context.Context, cfg ConnectionConfig, handler TelegramHandler) (*Reader, error) {
	var conn io.ReadWriteCloser
	var keepAlive time.Duration
	var err error

	if cfg.Host != "" {
		dialer := net.Dialer{Timeout: dialTimeout}
		conn, err = dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
		keepAlive = tcpKeepAliveInterval
	} else {
		conn, err = serial.Open(serialConfig(cfg))
	}
	if err != nil {
		return nil, errors.NewConnectionError("open", err, cfg.Endpoint())
	}

	return newReader(conn, cfg, handler, keepAlive), nil
}

// newReader wires an already-open transport and starts the read loop.
// Split from Open so tests can inject a transport and keep-alive interval.
func newReader(conn io.ReadWriteCloser, cfg ConnectionConfig, handler TelegramHandler, keepAlive time.Duration) *Reader {
	r := &Reader{
		conn:      conn,
		decoder:   NewDecoder(cfg.Version),
		handler:   handler,
		endpoint:  cfg.Endpoint(),
		keepAlive: keepAlive,
		closed:    make(chan struct{}),
	}
	go r.readLoop()
	return r
}

// serialConfig maps the DSMR version to P1 line parameters:
// 9600 7E1 for the 2.2 dialect, 115200 8N1 for everything newer.
func serialConfig(cfg ConnectionConfig) *serial.Config {
	sc := &serial.Config{
		Address:  cfg.Device,
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	}
	if cfg.Version == "2.2" {
		sc.BaudRate = 9600
		sc.DataBits = 7
		sc.Parity = "E"
	}
	return sc
}

// readLoop frames telegrams ('/'...'!'+checksum) from the byte stream and
// hands decoded ones to the handler. It runs until the transport dies or
// Close is called, then completes WaitClosed. No telegram is delivered
// after the loop exits.
func (r *Reader) readLoop() {
	defer close(r.closed)

	br := bufio.NewReader(r.conn)
	var frame bytes.Buffer
	inFrame := false

	for {
		if r.keepAlive > 0 {
			if c, ok := r.conn.(net.Conn); ok {
				c.SetReadDeadline(time.Now().Add(r.keepAlive))
			}
		}

		line, err := br.ReadString('\n')
		if err != nil {
			r.finish(err)
			return
		}

		switch {
		case len(line) > 0 && line[0] == '/':
			frame.Reset()
			frame.WriteString(line)
			inFrame = true
		case inFrame && len(line) > 0 && line[0] == '!':
			frame.WriteString(line)
			r.deliver(frame.Bytes())
			frame.Reset()
			inFrame = false
		case inFrame:
			frame.WriteString(line)
		}
	}
}

// deliver decodes one framed telegram and invokes the handler.
// Decode failures are logged and the telegram dropped; a corrupt frame
// is routine on a flaky P1 cable and must not kill the connection.
func (r *Reader) deliver(frame []byte) {
	telegram, err := r.decoder.Decode(frame)
	if err != nil {
		logger.LogWarn("Dropping telegram from %s: %v", r.endpoint, err)
		return
	}
	logger.LogTrace("Telegram received from %s with %d objects", r.endpoint, len(telegram))
	if r.handler != nil {
		r.handler(telegram)
	}
}

// finish records why the loop ended. Errors caused by an explicit Close
// are an orderly shutdown, everything else is a transport failure.
func (r *Reader) finish(err error) {
	r.mu.Lock()
	closing := r.closing
	if !closing && err != io.EOF {
		r.err = errors.NewTransportError("read", err, r.endpoint)
	} else if !closing && err == io.EOF {
		r.err = errors.NewTransportError("read", fmt.Errorf("connection closed by remote"), r.endpoint)
	}
	r.mu.Unlock()

	r.conn.Close()

	if closing {
		logger.LogDebug("Reader for %s closed", r.endpoint)
	} else {
		logger.LogWarn("Connection to %s lost: %v", r.endpoint, err)
	}
}

// Close terminates the connection. Safe to call multiple times and from
// any goroutine; the read loop observes the closed transport and exits.
func (r *Reader) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closing = true
		r.mu.Unlock()
		r.conn.Close()
	})
}

// WaitClosed blocks until the underlying connection has fully terminated,
// whether by explicit Close or a transport-level failure. A cancelled
// context returns its error without waiting further.
func (r *Reader) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return nil
	}
}

// Err returns the transport error that ended the stream, or nil after an
// orderly Close. Only meaningful once WaitClosed has completed.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
