package serverinfofile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs/fsmock"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newProvider(t *testing.T, yaml string) config.Provider {
	provider, err := config.NewYAML(config.Source(strings.NewReader(yaml)))
	require.NoError(t, err)
	return provider
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "all required params are present",
			yaml: "serverInfoFilePath: /tmp/depbuilder/info.json",
		},
		{
			name:    "missing key",
			yaml:    "other: value",
			wantErr: true,
		},
		{
			name:    "missing value",
			yaml:    "serverInfoFilePath: \"\"",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Params{
				Config:    newProvider(t, tt.yaml),
				FS:        fs.New(),
				Lifecycle: fxtest.NewLifecycle(t),
				Logger:    zap.NewNop().Sugar(),
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateField(t *testing.T) {
	t.Run("multiple successful updates", func(t *testing.T) {
		infofile := filepath.Join(t.TempDir(), "nested", "info.json")
		m := module{
			infofile:     infofile,
			fs:           fs.New(),
			logger:       zap.NewNop().Sugar(),
			fileContents: make(map[string]string),
		}

		steps := []struct {
			key        string
			value      string
			expectJSON string
		}{
			{key: "key1", value: "value1", expectJSON: `{"key1":"value1"}`},
			{key: "key1", value: "value2", expectJSON: `{"key1":"value2"}`},
			{key: "key2", value: "value2", expectJSON: `{"key1":"value2","key2":"value2"}`},
		}

		for _, step := range steps {
			require.NoError(t, m.UpdateField(step.key, step.value))
			contents, err := os.ReadFile(infofile)
			require.NoError(t, err)
			assert.Equal(t, step.expectJSON, string(contents))
		}

		require.NoError(t, m.OnStop(context.Background()))
		_, err := os.Stat(infofile)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fsMock := fsmock.NewMockFS(ctrl)
		fsMock.EXPECT().MkdirAll("/info").Return(nil)
		fsMock.EXPECT().WriteFile("/info/file.json", gomock.Any()).Return(errors.New("disk full"))

		m := module{
			infofile:     "/info/file.json",
			fs:           fsMock,
			logger:       zap.NewNop().Sugar(),
			fileContents: make(map[string]string),
		}
		assert.ErrorContains(t, m.UpdateField("key", "value"), "disk full")
	})

	t.Run("mkdir failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fsMock := fsmock.NewMockFS(ctrl)
		fsMock.EXPECT().MkdirAll("/info").Return(errors.New("read only"))

		m := module{
			infofile:     "/info/file.json",
			fs:           fsMock,
			logger:       zap.NewNop().Sugar(),
			fileContents: make(map[string]string),
		}
		assert.Error(t, m.UpdateField("key", "value"))
	})
}

func TestOnStop(t *testing.T) {
	t.Run("nothing written", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := module{
			infofile:     "/never/written.json",
			fs:           fsmock.NewMockFS(ctrl),
			logger:       zap.NewNop().Sugar(),
			fileContents: make(map[string]string),
		}
		assert.NoError(t, m.OnStop(context.Background()))
	})

	t.Run("remove failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fsMock := fsmock.NewMockFS(ctrl)
		fsMock.EXPECT().Remove("/info/file.json").Return(errors.New("busy"))
		m := module{
			infofile:     "/info/file.json",
			fs:           fsMock,
			logger:       zap.NewNop().Sugar(),
			fileContents: map[string]string{"k": "v"},
		}
		assert.Error(t, m.OnStop(context.Background()))
	})
}
