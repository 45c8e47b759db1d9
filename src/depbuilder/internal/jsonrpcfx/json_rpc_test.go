package jsonrpcfx

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/depbuilder/src/depbuilder/internal/serverinfofile/serverinfofilemock"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		params  func(t *testing.T) Params
		wantErr bool
	}{
		{
			name:    "missing required params",
			params:  func(t *testing.T) Params { return Params{} },
			wantErr: true,
		},
		{
			name: "all required params are present",
			params: func(t *testing.T) Params {
				return Params{Lifecycle: fxtest.NewLifecycle(t), Config: newConfigProvider(t, "valid")}
			},
		},
		{
			name: "missing address",
			params: func(t *testing.T) Params {
				return Params{Lifecycle: fxtest.NewLifecycle(t), Config: newConfigProvider(t, "missingKey")}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params(t))

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := module{}

	mockConnectionManager := NewMockConnectionManager(ctrl)

	// first call should return no error
	err := m.RegisterConnectionManager(mockConnectionManager)
	assert.NoError(t, err)

	// duplicate call should return error
	err = m.RegisterConnectionManager(mockConnectionManager)
	assert.Error(t, err)
}

func TestServeStream(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name                        string
		connectionManagerRegistered bool
		newConnectionErr            error
		wantErr                     bool
	}{
		{
			name:    "no connection manager registered",
			wantErr: true,
		},
		{
			name:                        "failed NewConnection",
			connectionManagerRegistered: true,
			newConnectionErr:            errors.New("sample error"),
			wantErr:                     true,
		},
		{
			name:                        "successful NewConnection",
			connectionManagerRegistered: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := module{logger: zap.NewNop().Sugar()}

			clientEnd, serverEnd := net.Pipe()
			conn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverEnd))
			defer conn.Close()

			if tt.connectionManagerRegistered {
				mgr := NewMockConnectionManager(ctrl)
				require.NoError(t, m.RegisterConnectionManager(mgr))
				if tt.newConnectionErr != nil {
					mgr.EXPECT().NewConnection(gomock.Any(), conn).Return(nil, tt.newConnectionErr)
				} else {
					id := uuid.Must(uuid.NewV4())
					router := NewMockRouter(ctrl)
					router.EXPECT().UUID().Return(id).AnyTimes()
					mgr.EXPECT().NewConnection(gomock.Any(), conn).Return(router, nil)
					mgr.EXPECT().RemoveConnection(gomock.Any(), id)
				}
			}

			// The client hangs up right away.
			clientEnd.Close()
			err := m.ServeStream(ctx, conn)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				// A hang-up is reported as the connection error.
				assert.Error(t, err)
				assert.NotContains(t, err.Error(), "connection manager")
			}
		})
	}
}

func TestServeStreamStopsWithContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := module{logger: zap.NewNop().Sugar()}

	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(serverEnd))

	id := uuid.Must(uuid.NewV4())
	router := NewMockRouter(ctrl)
	router.EXPECT().UUID().Return(id).AnyTimes()
	mgr := NewMockConnectionManager(ctrl)
	mgr.EXPECT().NewConnection(gomock.Any(), gomock.Any()).Return(router, nil)
	mgr.EXPECT().RemoveConnection(gomock.Any(), id)
	require.NoError(t, m.RegisterConnectionManager(mgr))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.ServeStream(ctx, conn) }()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStream did not return after cancellation")
	}
}

func TestSetup(t *testing.T) {
	m := module{
		logger: zap.NewNop().Sugar(),
	}
	err := m.setup()
	assert.Error(t, err)

	m = module{Address: "127.0.0.1:0"}
	err = m.setup()
	require.NoError(t, err)
	assert.NotNil(t, m.Addr())
	m.ln.Close()
}

func TestProcessConfig(t *testing.T) {
	tests := []struct {
		name        string
		configKey   string
		wantErr     bool
		errorString string
	}{
		{
			name:      "valid configuration",
			configKey: "valid",
			wantErr:   false,
		},
		{
			name:        "missing address key",
			configKey:   "missingKey",
			wantErr:     true,
			errorString: "missing field \"jsonrpc.address\" in config",
		},
		{
			name:        "missing address value",
			configKey:   "missingValue",
			wantErr:     true,
			errorString: "missing field \"jsonrpc.address\" in config",
		},
		{
			name:      "incorrectly formatted entry",
			configKey: "formatProblem",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := module{
				logger: zap.NewNop().Sugar(),
			}
			err := m.processConfig(newConfigProvider(t, tt.configKey))

			if tt.wantErr {
				require.Error(t, err)
				if tt.errorString != "" {
					assert.Equal(t, tt.errorString, err.Error())
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	infoFileMock := serverinfofilemock.NewMockServerInfoFile(ctrl)

	var published string
	infoFileMock.EXPECT().UpdateField(_outputKey, gomock.Any()).DoAndReturn(func(key, value string) error {
		published = value
		return nil
	})

	id := uuid.Must(uuid.NewV4())
	router := NewMockRouter(ctrl)
	router.EXPECT().UUID().Return(id).AnyTimes()
	router.EXPECT().HandleReq(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
			return reply(ctx, req.Method(), nil)
		})
	mgr := NewMockConnectionManager(ctrl)
	mgr.EXPECT().NewConnection(gomock.Any(), gomock.Any()).Return(router, nil)
	mgr.EXPECT().RemoveConnection(gomock.Any(), id)

	lc := fxtest.NewLifecycle(t)
	mod, err := New(Params{
		Config:         newConfigProvider(t, "ephemeral"),
		Lifecycle:      lc,
		Logger:         zap.NewNop().Sugar(),
		ServerInfoFile: infoFileMock,
	})
	require.NoError(t, err)
	require.NoError(t, mod.RegisterConnectionManager(mgr))

	lc.RequireStart()
	require.NotNil(t, mod.Addr())
	assert.Equal(t, mod.Addr().String(), published)

	nc, err := net.Dial("tcp", mod.Addr().String())
	require.NoError(t, err)
	client := jsonrpc2.NewConn(jsonrpc2.NewStream(nc))
	client.Go(context.Background(), jsonrpc2.MethodNotFoundHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var echoed string
	_, err = client.Call(ctx, "depbuilder/echo", nil, &echoed)
	require.NoError(t, err)
	assert.Equal(t, "depbuilder/echo", echoed)

	// Stopping closes the open connection from the server side.
	lc.RequireStop()
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client connection was not closed by the server")
	}
	client.Close()
}

func TestStartFailsWhenAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	m := module{Address: ln.Addr().String(), logger: zap.NewNop().Sugar()}
	assert.Error(t, m.OnStart(context.Background()))
	assert.NoError(t, m.OnStop(context.Background()))
}

func TestStartFailsWhenInfoFileFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	infoFileMock := serverinfofilemock.NewMockServerInfoFile(ctrl)
	infoFileMock.EXPECT().UpdateField(_outputKey, gomock.Any()).Return(errors.New("read-only file system"))

	m := module{Address: "127.0.0.1:0", logger: zap.NewNop().Sugar(), serverInfoFile: infoFileMock}
	err := m.OnStart(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing JSON-RPC address")
}

func newConfigProvider(t *testing.T, configKey string) config.Provider {
	configs := map[string]string{
		"valid": `
jsonrpc:
  address: :5859`,
		"ephemeral": `
jsonrpc:
  address: 127.0.0.1:0`,
		"missingKey": `
jsonrpc:
  other: value`,
		"missingValue": `
jsonrpc:
  address:`,
		"formatProblem": `
jsonrpc:
  address:
    key: val`,
	}

	provider, err := config.NewYAML(config.Source(strings.NewReader(configs[configKey])))
	require.NoError(t, err)
	return provider
}
