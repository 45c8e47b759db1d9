// Package langserver talks to a single language server process over a Content-Length framed JSON-RPC stream.
package langserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_errWrite = "writing %s to %s: %w"
	_errRead  = "reading from %s: %w"
)

// Conn is one language server connection. Calls may be issued concurrently, but the pool
// only ever leases a Conn to one caller at a time.
type Conn struct {
	id      string
	stream  jsonrpc2.Stream
	proc    Process
	logger  *zap.SugaredLogger
	discard func()

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[jsonrpc2.ID]chan *jsonrpc2.Response
	closed  bool
	err     error
	done    chan struct{}

	docs       documents
	serverInfo *protocol.ServerInfo

	wg sync.WaitGroup
}

// ConnOption customizes a Conn.
type ConnOption func(*Conn)

// WithProcess attaches the operating system process behind the stream.
func WithProcess(p Process) ConnOption {
	return func(c *Conn) {
		c.proc = p
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.SugaredLogger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithDiscardHook is called for every response that matches no in-flight call.
func WithDiscardHook(fn func()) ConnOption {
	return func(c *Conn) {
		c.discard = fn
	}
}

// NewConn wraps rwc in a framed stream and starts reading from it.
func NewConn(rwc io.ReadWriteCloser, opts ...ConnOption) *Conn {
	id, err := uuid.NewV4()
	c := &Conn{
		stream:  jsonrpc2.NewStream(rwc),
		logger:  zap.NewNop().Sugar(),
		discard: func() {},
		pending: make(map[jsonrpc2.ID]chan *jsonrpc2.Response),
		done:    make(chan struct{}),
		docs:    documents{open: make(map[protocol.DocumentURI]openDocument)},
	}
	if err == nil {
		c.id = id.String()
	} else {
		c.id = NextCorrelationID()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("conn", c.id, "pid", c.PID())

	c.wg.Add(1)
	go c.readLoop()
	return c
}

// ID identifies the connection in logs and health output.
func (c *Conn) ID() string {
	return c.id
}

// PID is the server process id, or 0 when the connection has no process.
func (c *Conn) PID() int {
	if c.proc == nil {
		return 0
	}
	return c.proc.Pid()
}

// Done is closed once the connection can no longer be used.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Alive reports whether the connection is still usable.
func (c *Conn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Err returns the categorized reason the connection ended, or nil while it is alive.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ServerVersion is the version reported during initialize, if any.
func (c *Conn) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverInfo == nil {
		return ""
	}
	if c.serverInfo.Version == "" {
		return c.serverInfo.Name
	}
	return c.serverInfo.Name + " " + c.serverInfo.Version
}

// Call sends a request and waits for the matching response.
// A server error reply is returned as a Response carrying a Failure, not as an error.
// The call fails with RequestTimeout when timeout elapses, Cancelled when ctx ends,
// and ConnectionLost or ProtocolError when the connection breaks.
func (c *Conn) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (*entity.Response, error) {
	correlationID := NextCorrelationID()
	id := jsonrpc2.NewStringID(correlationID)
	call, err := jsonrpc2.NewCall(id, method, params)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidRequest, fmt.Errorf("encoding %s params: %w", method, err))
	}

	ch := make(chan *jsonrpc2.Response, 1)
	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	start := time.Now()
	if err := c.write(ctx, call, method); err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case resp := <-ch:
		return toResponse(correlationID, resp, time.Since(start)), nil
	case <-c.done:
		// A response may have been delivered just before the reader gave up.
		select {
		case resp := <-ch:
			return toResponse(correlationID, resp, time.Since(start)), nil
		default:
		}
		return nil, c.Err()
	case <-expired:
		return nil, errors.Newf(errors.RequestTimeout, "%s on %s exceeded %v", method, c.id, timeout)
	case <-ctx.Done():
		return nil, errors.FromContext(ctx)
	}
}

// Notify sends a notification. No response is expected.
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) error {
	n, err := jsonrpc2.NewNotification(method, params)
	if err != nil {
		return errors.Wrap(errors.InvalidRequest, fmt.Errorf("encoding %s params: %w", method, err))
	}
	return c.write(ctx, n, method)
}

// Initialize performs the initialize handshake and records the server identity.
func (c *Conn) Initialize(ctx context.Context, params *protocol.InitializeParams, timeout time.Duration) error {
	resp, err := c.Call(ctx, protocol.MethodInitialize, params, timeout)
	if err != nil {
		return err
	}
	if resp.Failure != nil {
		return errors.Wrap(errors.ProtocolError, fmt.Errorf("initialize rejected: %w", resp.Failure))
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		return errors.Wrap(errors.ProtocolError, fmt.Errorf("decoding initialize result: %w", err))
	}
	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	if err := c.Notify(ctx, protocol.MethodInitialized, &protocol.InitializedParams{}); err != nil {
		return err
	}
	c.logger.Infow("language server initialized", "server", c.ServerVersion(), "elapsed", resp.Elapsed)
	return nil
}

// Ping checks that the server still answers. Any reply counts, including an error reply.
func (c *Conn) Ping(ctx context.Context, method string, timeout time.Duration) error {
	_, err := c.Call(ctx, method, nil, timeout)
	return err
}

// Close asks the server to shut down, closes the stream, and then escalates through the
// process's stop sequence. A zero grace skips the shutdown request. It is safe to call on a
// broken connection.
func (c *Conn) Close(ctx context.Context, grace, killGrace time.Duration) error {
	if grace > 0 && c.Alive() {
		if _, err := c.Call(ctx, protocol.MethodShutdown, nil, grace); err != nil {
			c.logger.Debugw("shutdown request failed", "error", err)
		} else if err := c.Notify(ctx, protocol.MethodExit, nil); err != nil {
			c.logger.Debugw("exit notification failed", "error", err)
		}
	}

	c.terminate(errors.Newf(errors.ConnectionLost, "connection %s closed", c.id))

	var err error
	if c.proc != nil {
		err = multierr.Append(err, c.proc.Stop(grace, killGrace))
	}
	c.wg.Wait()
	return err
}

func (c *Conn) write(ctx context.Context, msg jsonrpc2.Message, method string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.Alive() {
		return c.Err()
	}
	if _, err := c.stream.Write(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return errors.FromContext(ctx)
		}
		lost := errors.Wrap(errors.ConnectionLost, fmt.Errorf(_errWrite, method, c.id, err))
		c.terminate(lost)
		return c.Err()
	}
	return nil
}

func (c *Conn) forget(id jsonrpc2.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		delete(c.pending, id)
	}
}

// terminate marks the connection unusable. The first reason wins.
func (c *Conn) terminate(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = reason
	c.pending = nil
	close(c.done)
	c.mu.Unlock()

	if err := c.stream.Close(); err != nil {
		c.logger.Debugw("closing stream", "error", err)
	}
	c.logger.Infow("connection terminated", "reason", reason)
}

func (c *Conn) readLoop() {
	defer c.wg.Done()

	for {
		msg, _, err := c.stream.Read(context.Background())
		if err != nil {
			c.terminate(classifyReadError(c.id, err))
			return
		}

		switch m := msg.(type) {
		case *jsonrpc2.Response:
			c.deliver(m)
		case *jsonrpc2.Call:
			c.replyEmpty(m)
		case *jsonrpc2.Notification:
			c.handleNotification(m)
		}
	}
}

func (c *Conn) deliver(resp *jsonrpc2.Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID()]
	if ok {
		delete(c.pending, resp.ID())
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debugw("discarding unmatched response", "id", fmt.Sprintf("%v", resp.ID()))
		c.discard()
		return
	}
	ch <- resp
}

// replyEmpty acknowledges server-to-client requests such as progress token creation.
// The write happens off the reader goroutine so a slow writer cannot stall reads.
func (c *Conn) replyEmpty(call *jsonrpc2.Call) {
	c.logger.Debugw("acknowledging server request", "method", call.Method())
	resp, err := jsonrpc2.NewResponse(call.ID(), nil, nil)
	if err != nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.write(context.Background(), resp, call.Method()); err != nil {
			c.logger.Debugw("replying to server request", "method", call.Method(), "error", err)
		}
	}()
}

func toResponse(correlationID string, resp *jsonrpc2.Response, elapsed time.Duration) *entity.Response {
	if err := resp.Err(); err != nil {
		failure := entity.Failure{Message: err.Error()}
		var wire *jsonrpc2.Error
		if errors.As(err, &wire) {
			failure.Code = int64(wire.Code)
		}
		return entity.NewFailureResponse(correlationID, failure, elapsed)
	}
	return entity.NewSuccessResponse(correlationID, json.RawMessage(resp.Result()), elapsed)
}

// classifyReadError maps a read failure to ConnectionLost when the stream went away,
// and to ProtocolError when the server sent something that could not be decoded.
func classifyReadError(id string, err error) error {
	wrapped := fmt.Errorf(_errRead, id, err)
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, net.ErrClosed):
		return errors.Wrap(errors.ConnectionLost, wrapped)
	default:
		return errors.Wrap(errors.ProtocolError, wrapped)
	}
}
