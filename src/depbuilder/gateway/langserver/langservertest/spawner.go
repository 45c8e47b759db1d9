package langservertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
)

// Spawner starts connections to a shared in-memory Server.
type Spawner struct {
	Server *Server
	// Options are applied to every new connection.
	Options []langserver.ConnOption

	mu       sync.Mutex
	spawned  int
	failures int
	delay    time.Duration
}

var _ langserver.Spawner = (*Spawner)(nil)

// ErrSpawn is returned by Spawn while failures are scripted.
var ErrSpawn = errors.New("scripted spawn failure")

// NewSpawner returns a Spawner backed by s.
func NewSpawner(s *Server, opts ...langserver.ConnOption) *Spawner {
	return &Spawner{Server: s, Options: opts}
}

// FailNext makes the next n spawns fail.
func (sp *Spawner) FailNext(n int) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.failures += n
}

// SlowStart makes every spawn take at least d.
func (sp *Spawner) SlowStart(d time.Duration) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.delay = d
}

// Spawned is the number of successful spawns.
func (sp *Spawner) Spawned() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.spawned
}

// Spawn connects to the server and runs the initialize handshake.
func (sp *Spawner) Spawn(ctx context.Context) (*langserver.Conn, error) {
	sp.mu.Lock()
	fail := sp.failures > 0
	if fail {
		sp.failures--
	}
	delay := sp.delay
	sp.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, ErrSpawn
	}

	conn := langserver.NewConn(sp.Server.Connect(), sp.Options...)
	params := langserver.InitializeParams("/workspace", entity.LangServerConfig{}.WithDefaults())
	if err := conn.Initialize(ctx, params, time.Second); err != nil {
		conn.Close(context.Background(), 0, 0)
		return nil, err
	}

	sp.mu.Lock()
	sp.spawned++
	sp.mu.Unlock()
	return conn, nil
}

// Describe implements langserver.Spawner.
func (sp *Spawner) Describe() string {
	return "fakels"
}
