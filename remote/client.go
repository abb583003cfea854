package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/mapsection/backend"
	"github.com/xraph/mapsection/backoff"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Compile-time interface check.
var _ backend.Generator = (*Client)(nil)

var (
	// ErrClientClosed is returned by Generate after Close.
	ErrClientClosed = errors.New("remote: client closed")

	// ErrConnectionLost is returned for requests in flight when the
	// connection drops.
	ErrConnectionLost = errors.New("remote: connection lost")
)

// readWriter reads from a handshake's buffered reader and writes to the
// raw connection.
type readWriter struct {
	io.Reader
	io.Writer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCodec sets the frame codec.
func WithCodec(c codec.Codec) ClientOption {
	return func(cl *Client) { cl.codec = c }
}

// WithDialRetry sets how many times a connection is attempted per
// Generate call and the delay between attempts.
func WithDialRetry(attempts int, s backoff.Strategy) ClientOption {
	return func(cl *Client) {
		cl.dialAttempts = attempts
		cl.strategy = s
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// Client is a backend.Generator backed by a remote Handler. It connects on
// first use and reconnects after the connection drops.
type Client struct {
	url          string
	codec        codec.Codec
	dialAttempts int
	strategy     backoff.Strategy
	logger       *slog.Logger

	dialMu sync.Mutex

	mu       sync.Mutex
	conn     net.Conn
	workerID string
	pending  map[uint64]chan Frame
	closed   bool

	writeMu sync.Mutex
	nextID  atomic.Uint64
}

// NewClient returns a client for the handler at rawURL (ws:// or wss://).
func NewClient(rawURL string, opts ...ClientOption) *Client {
	c := &Client{
		url:          rawURL,
		codec:        codec.Msgpack{},
		dialAttempts: 3,
		strategy:     backoff.DefaultStrategy(),
		logger:       slog.Default(),
		pending:      make(map[uint64]chan Frame),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WorkerID returns the connected handler's worker ID, or "" before the
// first connection.
func (c *Client) WorkerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workerID
}

// Generate sends req to the remote worker and loads the result into dst.
// Cancelling ctx abandons the request on both ends.
func (c *Client) Generate(ctx context.Context, req *section.Request, dst *pool.Vectors) error {
	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}

	frameID := c.nextID.Add(1)
	ch := make(chan Frame, 1)
	c.mu.Lock()
	c.pending[frameID] = ch
	c.mu.Unlock()

	if err := c.write(conn, &Frame{ID: frameID, Type: FrameGenerate, Request: NewGenerateRequest(req)}); err != nil {
		c.forget(frameID)
		c.fail(conn)
		return fmt.Errorf("remote: send %s: %w", req.ID(), err)
	}

	select {
	case f, ok := <-ch:
		if !ok {
			return fmt.Errorf("remote: generate %s: %w", req.ID(), ErrConnectionLost)
		}
		switch f.Type {
		case FrameResult:
			if f.Result == nil {
				return fmt.Errorf("remote: generate %s: empty result", req.ID())
			}
			return dst.Load(f.Result.Counts, f.Result.EscapeVelocities)
		case FrameError:
			return fmt.Errorf("remote: generate %s: %s", req.ID(), f.Error)
		default:
			return fmt.Errorf("remote: generate %s: unexpected %s frame", req.ID(), f.Type)
		}
	case <-ctx.Done():
		c.forget(frameID)
		_ = c.write(conn, &Frame{ID: frameID, Type: FrameCancel})
		return ctx.Err()
	}
}

// Close closes the connection. Requests in flight fail with
// ErrConnectionLost.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.fail(conn)
	}
	return nil
}

// connection returns the live connection, dialing if there is none.
func (c *Client) connection(ctx context.Context) (net.Conn, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClientClosed
	}
	if conn != nil {
		return conn, nil
	}

	target, err := c.dialURL()
	if err != nil {
		return nil, err
	}

	var (
		stream io.ReadWriter
		hello  Frame
	)
	err = backoff.Retry(ctx, c.strategy, c.dialAttempts, func(ctx context.Context) error {
		nc, br, _, dialErr := ws.Dial(ctx, target)
		if dialErr != nil {
			return dialErr
		}
		rw := io.ReadWriter(nc)
		if br != nil {
			rw = readWriter{br, nc}
		}
		data, _, readErr := wsutil.ReadServerData(rw)
		if readErr == nil {
			readErr = c.codec.Unmarshal(data, &hello)
		}
		if readErr == nil && hello.Type != FrameHello {
			readErr = fmt.Errorf("expected hello, got %s", hello.Type)
		}
		if readErr != nil {
			nc.Close()
			return readErr
		}
		conn, stream = nc, rw
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.workerID = hello.WorkerID
	c.mu.Unlock()

	c.logger.Info("remote worker connected",
		slog.String("url", c.url),
		slog.String("worker_id", hello.WorkerID),
	)

	go c.readLoop(conn, stream)
	return conn, nil
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("remote: parse url: %w", err)
	}
	q := u.Query()
	q.Set("codec", c.codec.Name())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) readLoop(conn net.Conn, stream io.ReadWriter) {
	for {
		data, _, err := wsutil.ReadServerData(stream)
		if err != nil {
			c.logger.Debug("remote worker read failed",
				slog.String("url", c.url),
				slog.String("error", err.Error()),
			)
			c.fail(conn)
			return
		}

		var f Frame
		if err := c.codec.Unmarshal(data, &f); err != nil {
			c.logger.Warn("remote frame decode failed", slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

func (c *Client) write(conn net.Conn, f *Frame) error {
	data, err := c.codec.Marshal(f)
	if err != nil {
		return err
	}
	op := ws.OpText
	if c.codec.Binary() {
		op = ws.OpBinary
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientMessage(conn, op, data)
}

func (c *Client) forget(frameID uint64) {
	c.mu.Lock()
	delete(c.pending, frameID)
	c.mu.Unlock()
}

// fail drops conn and fails every request waiting on it.
func (c *Client) fail(conn net.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint64]chan Frame)
	c.mu.Unlock()

	conn.Close()
	for _, ch := range pending {
		close(ch)
	}
}
