package executor

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Instantiates the new Executor through fx provider
func fxExecutor(t *testing.T) (Executor, *observer.ObservedLogs) {
	var e Executor
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	fxtest.New(t,
		fx.Provide(
			func() Executor {
				return NewExecutor(WithLogger(logger))
			},
		),
		fx.Populate(&e),
	).RequireStart().RequireStop()

	return e, recorded
}

func TestModule(t *testing.T) {
	var e Executor
	fxtest.New(t,
		fx.Supply(zap.NewNop().Sugar()),
		Module,
		fx.Populate(&e),
	).RequireStart().RequireStop()
	assert.NotNil(t, e)
}

func TestStart(t *testing.T) {
	e, recorded := fxExecutor(t)

	t.Run("start and wait", func(t *testing.T) {
		binPath, err := exec.LookPath("cat")
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("no cat available")
		}
		require.NoError(t, err)

		cmd := exec.Command("cat", "-")
		cmd.Dir = "/"
		stdin, err := cmd.StdinPipe()
		require.NoError(t, err)
		var out strings.Builder
		cmd.Stdout = &out

		require.NoError(t, e.Start(cmd))
		_, err = stdin.Write([]byte("hello"))
		require.NoError(t, err)
		require.NoError(t, stdin.Close())
		require.NoError(t, cmd.Wait())
		assert.Equal(t, "hello", out.String())

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, map[string]interface{}{
			"Path": binPath,
			"Dir":  "/",
			"Args": []interface{}{"-"},
		}, logs[0].ContextMap())
	})

	t.Run("unknown command", func(t *testing.T) {
		err := e.Start(exec.Command("no_valid_command_"))
		assert.Error(t, err)
	})

	t.Run("custom start func", func(t *testing.T) {
		started := false
		custom := NewExecutor(WithStartFunc(func(cmd *exec.Cmd) error {
			started = true
			return nil
		}))
		assert.NoError(t, custom.Start(exec.Command("anything", "arg")))
		assert.True(t, started)
	})

	t.Run("missing start func", func(t *testing.T) {
		custom := NewExecutor(WithStartFunc(nil))
		assert.NoError(t, custom.Start(exec.Command("anything")))
	})
}

func TestRun(t *testing.T) {
	tempDir := t.TempDir()
	e, recorded := fxExecutor(t)

	t.Run("echo with stdin", func(t *testing.T) {
		cmd := exec.Command("cat")
		cmd.Dir = tempDir
		cmd.Env = os.Environ()
		cmd.Stdin = strings.NewReader("SomeInput")
		stdOut, stdErr, exitCode, err := e.Run(cmd)

		assert.Equal(t, "SomeInput", stdOut)
		assert.Empty(t, stdErr)
		assert.Equal(t, 0, exitCode)
		assert.NoError(t, err)

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "SomeInput", logs[0].ContextMap()["Stdin"])
	})

	t.Run("ls", func(t *testing.T) {
		cmd := exec.Command("ls")
		cmd.Dir = tempDir
		cmd.Env = os.Environ()
		stdOut, stdErr, exitCode, err := e.Run(cmd)

		assert.Equal(t, "", stdOut)
		assert.Empty(t, stdErr)
		assert.Equal(t, 0, exitCode)
		assert.NoError(t, err)
	})
}

func TestRunFails(t *testing.T) {
	tempDir := t.TempDir()
	e, _ := fxExecutor(t)

	t.Run("rm dir", func(t *testing.T) {
		cmd := exec.Command("rm", tempDir)
		cmd.Dir = tempDir
		cmd.Env = os.Environ()
		stdOut, stdErr, exitCode, err := e.Run(cmd)

		assert.Empty(t, string(stdOut))
		assert.Contains(t, strings.ToLower(stdErr), "is a directory")
		assert.Equal(t, 1, exitCode)
		assert.Error(t, err)
		assert.Equal(t, "exit status 1", err.Error())
	})

	t.Run("Unknown Command", func(t *testing.T) {
		cmd := exec.Command("no_valid_command_")
		cmd.Dir = tempDir
		cmd.Env = os.Environ()
		stdOut, stdErr, exitCode, err := e.Run(cmd)

		assert.Empty(t, stdOut)
		assert.Empty(t, stdErr)
		assert.Equal(t, -1, exitCode)
		assert.Error(t, err)
		assert.Equal(t, `exec: "no_valid_command_": executable file not found in $PATH`, err.Error())
	})
}
