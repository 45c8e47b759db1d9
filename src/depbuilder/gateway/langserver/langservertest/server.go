// Package langservertest provides an in-memory language server for tests.
// Behavior is scripted per method: fixed results, delays, one-shot crashes and garbage frames.
package langservertest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// HandlerFunc computes the result of one call. Returning a *jsonrpc2.Error sends an error reply.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server is shared by every connection it accepts, so scripted behavior applies to
// whichever connection receives the matching call first.
type Server struct {
	// Name and Version are reported from initialize.
	Name    string
	Version string

	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	delays    map[string]time.Duration
	crashes   map[string]int
	garbage   map[string]int
	calls     map[string]int
	notified  map[string][]json.RawMessage
	pushAfter map[string][]jsonrpc2.Message
	conns     map[*serverConn]struct{}

	wg sync.WaitGroup
}

// NewServer returns a server that answers initialize and shutdown, and replies
// MethodNotFound to everything else until a handler is registered.
func NewServer() *Server {
	return &Server{
		Name:      "fakels",
		Version:   "0.1.0",
		handlers:  make(map[string]HandlerFunc),
		delays:    make(map[string]time.Duration),
		crashes:   make(map[string]int),
		garbage:   make(map[string]int),
		calls:     make(map[string]int),
		notified:  make(map[string][]json.RawMessage),
		pushAfter: make(map[string][]jsonrpc2.Message),
		conns:     make(map[*serverConn]struct{}),
	}
}

// Handle registers fn for method.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Reply registers a fixed result for method.
func (s *Server) Reply(method string, result interface{}) {
	s.Handle(method, func(context.Context, json.RawMessage) (interface{}, error) {
		return result, nil
	})
}

// Delay makes every call of method wait d before answering.
func (s *Server) Delay(method string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[method] = d
}

// CrashNext makes the next n calls of method drop their connection instead of answering.
func (s *Server) CrashNext(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashes[method] += n
}

// GarbageNext makes the next n calls of method answer with an undecodable frame.
func (s *Server) GarbageNext(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.garbage[method] += n
}

// PushBefore sends msg to the client right before the reply to the next call of method.
func (s *Server) PushBefore(method string, msg jsonrpc2.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushAfter[method] = append(s.pushAfter[method], msg)
}

// Calls is the number of calls of method received so far, across all connections.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Notifications returns the params of every notification of method received so far.
func (s *Server) Notifications(method string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.notified[method]...)
}

// Connections is the number of connections still being served.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connect serves a new in-memory connection and returns the client end.
func (s *Server) Connect() io.ReadWriteCloser {
	client, server := net.Pipe()
	sc := &serverConn{
		srv:    s,
		raw:    server,
		stream: jsonrpc2.NewStream(server),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sc.serve()
	}()
	return client
}

// Close drops every connection and waits for all server goroutines to exit.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		sc.close()
	}
	s.wg.Wait()
}

type callPlan struct {
	handler HandlerFunc
	delay   time.Duration
	crash   bool
	garbage bool
	push    []jsonrpc2.Message
}

func (s *Server) plan(method string) callPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[method]++
	p := callPlan{handler: s.handlers[method], delay: s.delays[method], push: s.pushAfter[method]}
	delete(s.pushAfter, method)
	if s.crashes[method] > 0 {
		s.crashes[method]--
		p.crash = true
	}
	if s.garbage[method] > 0 {
		s.garbage[method]--
		p.garbage = true
	}
	return p
}

func (s *Server) recordNotification(n *jsonrpc2.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[n.Method()] = append(s.notified[n.Method()], json.RawMessage(n.Params()))
}

func (s *Server) forget(sc *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, sc)
}

type serverConn struct {
	srv    *Server
	raw    net.Conn
	stream jsonrpc2.Stream

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.stream.Close()
	})
}

func (c *serverConn) serve() {
	defer c.srv.forget(c)
	defer c.wg.Wait()
	defer c.close()

	for {
		msg, _, err := c.stream.Read(context.Background())
		if err != nil {
			return
		}

		switch m := msg.(type) {
		case *jsonrpc2.Call:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.answer(m)
			}()
		case *jsonrpc2.Notification:
			c.srv.recordNotification(m)
			if m.Method() == protocol.MethodExit {
				return
			}
		case *jsonrpc2.Response:
			// Acknowledgements of server requests.
		}
	}
}

func (c *serverConn) answer(call *jsonrpc2.Call) {
	p := c.srv.plan(call.Method())

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.done:
			return
		}
	}
	if p.crash {
		c.close()
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, msg := range p.push {
		if _, err := c.stream.Write(context.Background(), msg); err != nil {
			return
		}
	}
	if p.garbage {
		c.writeRaw([]byte("!garbage!"))
		return
	}

	result, err := c.result(call, p.handler)
	resp, respErr := jsonrpc2.NewResponse(call.ID(), result, err)
	if respErr != nil {
		resp, _ = jsonrpc2.NewResponse(call.ID(), nil, jsonrpc2.Errorf(jsonrpc2.InternalError, "%v", respErr))
	}
	c.stream.Write(context.Background(), resp)
}

func (c *serverConn) result(call *jsonrpc2.Call, handler HandlerFunc) (interface{}, error) {
	if handler != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-c.done:
				cancel()
			case <-ctx.Done():
			}
		}()
		return handler(ctx, json.RawMessage(call.Params()))
	}

	switch call.Method() {
	case protocol.MethodInitialize:
		return &protocol.InitializeResult{
			ServerInfo: &protocol.ServerInfo{Name: c.srv.Name, Version: c.srv.Version},
		}, nil
	case protocol.MethodShutdown:
		return nil, nil
	default:
		return nil, jsonrpc2.Errorf(jsonrpc2.MethodNotFound, "method not found: %s", call.Method())
	}
}

// writeRaw writes a correctly framed body that is not valid JSON-RPC.
func (c *serverConn) writeRaw(body []byte) {
	fmt.Fprintf(c.raw, "Content-Length: %d\r\n\r\n%s", len(body), body)
}
