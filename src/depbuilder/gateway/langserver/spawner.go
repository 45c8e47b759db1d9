package langserver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/internal/executor"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"github.com/uber/depbuilder/src/depbuilder/internal/logfilewriter"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"github.com/uber/depbuilder/src/depbuilder/internal/serverinfofile"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_clientName             = "depbuilder"
	_stderrOutputName       = "depbuilder-langserver"
	_spawnFailureKillGrace  = 2 * time.Second
	_errFmtSpawn            = "starting %q: %w"
	_errFmtInitialize       = "initializing %q: %w"
	_initOptionCache        = "cache"
	_initOptionIndex        = "index"
	_initOptionClient       = "client"
	_initOptionDirectory    = "directory"
	_initOptionThreads      = "threads"
	_initOptionSnippetUsage = "snippetSupport"
)

// Spawner starts new, initialized language server connections.
type Spawner interface {
	Spawn(ctx context.Context) (*Conn, error)
	// Describe is the command line used for new processes.
	Describe() string
}

// SpawnerParams are the dependencies of the process spawner.
type SpawnerParams struct {
	fx.In

	Config         config.Provider
	Executor       executor.Executor
	FS             fs.FS
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	Metrics        *metrics.Collector
	ServerInfoFile serverinfofile.ServerInfoFile
}

type processSpawner struct {
	cfg      entity.LangServerConfig
	root     string
	executor executor.Executor
	stderr   io.Writer
	logger   *zap.SugaredLogger
	metrics  *metrics.Collector
}

// NewSpawner creates a Spawner that launches the configured command with stdio pipes.
// Server stderr goes to a dedicated log file.
func NewSpawner(p SpawnerParams) (Spawner, error) {
	cfg, err := LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	root, err := WorkspaceRoot(p.Config)
	if err != nil {
		return nil, err
	}

	stderr, err := logfilewriter.SetupOutputWriter(logfilewriter.Params{
		FS:             p.FS,
		Lifecycle:      p.Lifecycle,
		ServerInfoFile: p.ServerInfoFile,
	}, _stderrOutputName)
	if err != nil {
		return nil, fmt.Errorf("setting up server output: %w", err)
	}

	return newProcessSpawner(cfg, root, p.Executor, stderr, p.Logger, p.Metrics), nil
}

func newProcessSpawner(cfg entity.LangServerConfig, root string, exec executor.Executor, stderr io.Writer, logger *zap.SugaredLogger, collector *metrics.Collector) *processSpawner {
	return &processSpawner{
		cfg:      cfg,
		root:     root,
		executor: exec,
		stderr:   stderr,
		logger:   logger.Named("langserver"),
		metrics:  collector,
	}
}

// LoadConfig reads the langserver block and applies defaults.
func LoadConfig(provider config.Provider) (entity.LangServerConfig, error) {
	var cfg entity.LangServerConfig
	if err := provider.Get(entity.LangServerConfigKey).Populate(&cfg); err != nil {
		return cfg, fmt.Errorf("getting config field %q: %w", entity.LangServerConfigKey, err)
	}
	cfg = cfg.WithDefaults()
	if _, err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WorkspaceRoot reads the workspace root and makes it absolute. An empty root is the working directory.
func WorkspaceRoot(provider config.Provider) (string, error) {
	var ws entity.WorkspaceConfig
	if err := provider.Get(entity.WorkspaceConfigKey).Populate(&ws); err != nil {
		return "", fmt.Errorf("getting config field %q: %w", entity.WorkspaceConfigKey, err)
	}
	if ws.Root == "" {
		return os.Getwd()
	}
	return filepath.Abs(ws.Root)
}

// InitializeParams builds the initialize request for a workspace.
func InitializeParams(root string, cfg entity.LangServerConfig) *protocol.InitializeParams {
	cacheDir := cfg.CacheDirectory
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(root, cacheDir)
	}
	rootURI := uri.File(root)

	return &protocol.InitializeParams{
		ProcessID:  int32(os.Getpid()),
		ClientInfo: &protocol.ClientInfo{Name: _clientName},
		RootPath:   root,
		RootURI:    rootURI,
		InitializationOptions: map[string]interface{}{
			_initOptionCache:  map[string]interface{}{_initOptionDirectory: cacheDir},
			_initOptionIndex:  map[string]interface{}{_initOptionThreads: cfg.EffectiveIndexThreads()},
			_initOptionClient: map[string]interface{}{_initOptionSnippetUsage: false},
		},
		WorkspaceFolders: []protocol.WorkspaceFolder{
			{URI: string(rootURI), Name: filepath.Base(root)},
		},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				DocumentSymbol: &protocol.DocumentSymbolClientCapabilities{HierarchicalDocumentSymbolSupport: true},
			},
		},
	}
}

func (s *processSpawner) Describe() string {
	return s.command().String()
}

func (s *processSpawner) command() *exec.Cmd {
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.root
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	return cmd
}

// Spawn starts one process in its own process group and runs the initialize handshake,
// all bounded by the startup timeout.
func (s *processSpawner) Spawn(ctx context.Context) (*Conn, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf(_errFmtSpawn, s.cfg.Command, err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf(_errFmtSpawn, s.cfg.Command, err), stdinR.Close(), stdinW.Close())
	}

	cmd := s.command()
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = s.stderr
	configureProcessGroup(cmd)

	startErr := s.executor.Start(cmd)
	// The child holds its own copies of these ends.
	closeErr := multierr.Combine(stdinR.Close(), stdoutW.Close())
	if startErr != nil {
		return nil, multierr.Combine(fmt.Errorf(_errFmtSpawn, s.cfg.Command, startErr), closeErr, stdinW.Close(), stdoutR.Close())
	}

	conn := NewConn(&pipeRWC{r: stdoutR, w: stdinW},
		WithProcess(newOSProcess(cmd)),
		WithLogger(s.logger),
		WithDiscardHook(s.metrics.DiscardedResponse),
	)

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()
	if err := conn.Initialize(initCtx, InitializeParams(s.root, s.cfg), s.cfg.StartupTimeout); err != nil {
		if ctx.Err() == nil && errors.Is(err, errors.Cancelled) {
			// Our own startup deadline expired, not the caller's.
			err = errors.Wrap(errors.RequestTimeout, err)
		}
		if closeErr := conn.Close(context.Background(), 0, _spawnFailureKillGrace); closeErr != nil {
			s.logger.Warnw("cleaning up failed server", "pid", conn.PID(), "error", closeErr)
		}
		return nil, fmt.Errorf(_errFmtInitialize, s.cfg.Command, err)
	}
	return conn, nil
}

// pipeRWC joins the two halves of a process's stdio.
type pipeRWC struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (p *pipeRWC) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *pipeRWC) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Close closes stdin first so the server sees end of input.
func (p *pipeRWC) Close() error {
	return multierr.Combine(p.w.Close(), p.r.Close())
}
