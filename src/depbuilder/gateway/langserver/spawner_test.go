package langserver

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/internal/executor"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"go.lsp.dev/uri"
	"go.uber.org/config"
	"go.uber.org/zap"
)

func newTestSpawner(t *testing.T, cfg entity.LangServerConfig) *processSpawner {
	t.Helper()
	if _, err := exec.LookPath(cfg.Command); err != nil {
		t.Skipf("%s not available: %v", cfg.Command, err)
	}
	return newProcessSpawner(cfg.WithDefaults(), t.TempDir(), executor.NewExecutor(), io.Discard, zap.NewNop().Sugar(), metrics.New(nil, nil))
}

func TestProcessSpawner(t *testing.T) {
	t.Run("echo server completes handshake", func(t *testing.T) {
		// cat echoes every frame, so each request comes back as a server request whose
		// acknowledgement in turn comes back as the response.
		s := newTestSpawner(t, entity.LangServerConfig{Command: "cat", StartupTimeout: 2 * time.Second})

		conn, err := s.Spawn(context.Background())
		require.NoError(t, err)
		assert.Positive(t, conn.PID())
		assert.True(t, conn.Alive())

		require.NoError(t, conn.Close(context.Background(), time.Second, time.Second))
		select {
		case <-conn.proc.Exited():
		case <-time.After(5 * time.Second):
			t.Fatal("process was not reaped")
		}
	})

	t.Run("unresponsive server is killed", func(t *testing.T) {
		s := newTestSpawner(t, entity.LangServerConfig{
			Command:        "sleep",
			Args:           []string{"30"},
			StartupTimeout: 50 * time.Millisecond,
		})

		start := time.Now()
		_, err := s.Spawn(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.RequestTimeout), "got %v", err)
		assert.Less(t, time.Since(start), _spawnFailureKillGrace)
	})

	t.Run("missing binary", func(t *testing.T) {
		s := newProcessSpawner(
			entity.LangServerConfig{Command: filepath.Join(t.TempDir(), "no-such-server")}.WithDefaults(),
			t.TempDir(), executor.NewExecutor(), io.Discard, zap.NewNop().Sugar(), metrics.New(nil, nil))

		_, err := s.Spawn(context.Background())
		assert.ErrorContains(t, err, "starting")
	})
}

func TestDescribe(t *testing.T) {
	s := newProcessSpawner(
		entity.LangServerConfig{Command: "ccls", Args: []string{"--log-file=/tmp/ccls.log"}}.WithDefaults(),
		"/ws", executor.NewExecutor(), io.Discard, zap.NewNop().Sugar(), metrics.New(nil, nil))
	assert.Contains(t, s.Describe(), "--log-file=/tmp/ccls.log")
}

func TestInitializeParams(t *testing.T) {
	params := InitializeParams("/ws/project", entity.LangServerConfig{IndexThreads: 4}.WithDefaults())

	assert.Equal(t, uri.File("/ws/project"), params.RootURI)
	assert.Equal(t, int32(os.Getpid()), params.ProcessID)
	require.Len(t, params.WorkspaceFolders, 1)
	assert.Equal(t, "project", params.WorkspaceFolders[0].Name)

	opts := params.InitializationOptions.(map[string]interface{})
	assert.Equal(t, "/ws/project/.ccls-cache", opts[_initOptionCache].(map[string]interface{})[_initOptionDirectory])
	assert.Equal(t, 4, opts[_initOptionIndex].(map[string]interface{})[_initOptionThreads])

	require.NotNil(t, params.Capabilities.TextDocument)
	assert.True(t, params.Capabilities.TextDocument.DocumentSymbol.HierarchicalDocumentSymbolSupport)

	abs := InitializeParams("/ws", entity.LangServerConfig{CacheDirectory: "/var/cache/ccls"}.WithDefaults())
	assert.Equal(t, "/var/cache/ccls", abs.InitializationOptions.(map[string]interface{})[_initOptionCache].(map[string]interface{})[_initOptionDirectory])
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    string
		wantErr bool
	}{
		{
			name: "defaults",
			yaml: "langserver: {}",
			want: "ccls",
		},
		{
			name: "explicit command",
			yaml: "langserver:\n  command: /opt/ccls\n  requestTimeout: 12s",
			want: "/opt/ccls",
		},
		{
			name:    "negative timeout",
			yaml:    "langserver:\n  requestTimeout: -1s",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := config.NewYAML(config.Source(strings.NewReader(tt.yaml)))
			require.NoError(t, err)

			cfg, err := LoadConfig(provider)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Command)
		})
	}
}

func TestWorkspaceRoot(t *testing.T) {
	provider, err := config.NewYAML(config.Source(strings.NewReader("workspace:\n  root: /ws/../ws/project")))
	require.NoError(t, err)
	root, err := WorkspaceRoot(provider)
	require.NoError(t, err)
	assert.Equal(t, "/ws/project", root)

	provider, err = config.NewYAML(config.Source(strings.NewReader("workspace: {}")))
	require.NoError(t, err)
	root, err = WorkspaceRoot(provider)
	require.NoError(t, err)
	wd, _ := os.Getwd()
	assert.Equal(t, wd, root)
}

func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Category
	}{
		{name: "eof", err: io.EOF, want: errors.ConnectionLost},
		{name: "closed pipe", err: io.ErrClosedPipe, want: errors.ConnectionLost},
		{name: "closed file", err: os.ErrClosed, want: errors.ConnectionLost},
		{name: "short body", err: io.ErrUnexpectedEOF, want: errors.ConnectionLost},
		{name: "garbage", err: errors.New("invalid character '!'"), want: errors.ProtocolError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := errors.CategoryOf(classifyReadError("conn", tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
