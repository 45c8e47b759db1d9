package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Context struct {
	Environment        string `yaml:"environment"`
	RuntimeEnvironment string `yaml:"runtimeEnvironment"`
}

const (
	// EnvLocal indicates that the service is running locally.
	EnvLocal = "local"

	// EnvDevelopment indicates that the service is running in a development environment.
	EnvDevelopment = "development"

	// Environment variables
	_envDepbuilderEnvironment = "DEPBUILDER_ENVIRONMENT"

	_serverLogFlag = "--log-file="
)

func decorateEnvContext(env Context) Context {
	envValue := EnvLocal
	if os.Getenv(_envDepbuilderEnvironment) == EnvDevelopment {
		envValue = EnvDevelopment
	}

	env.Environment = envValue
	env.RuntimeEnvironment = envValue
	return env
}

// DecorateConfigParams is the set of dependencies required to decorate the config.Provider.
type DecorateConfigParams struct {
	fx.In

	Env Context
	Cfg config.Provider
	FS  fs.FS
}

// decorateConfigProvider includes any steps that modify the config.Provider before it is used, or use its data for any startup related activities.
func decorateConfigProvider(p DecorateConfigParams) (config.Provider, error) {
	combined, err := ensureLogFolder(p.Cfg, p.FS)
	if err != nil {
		return nil, fmt.Errorf("ensuring log folder: %v", err)
	}

	combined, err = ensureServerLogFolder(combined, p.FS)
	if err != nil {
		return nil, fmt.Errorf("ensuring language server log folder: %v", err)
	}

	return combined, nil
}

// Ensure that all configured logging output directories exist or create if necessary.
func ensureLogFolder(cfg config.Provider, fs fs.FS) (config.Provider, error) {
	var c zap.Config
	if err := cfg.Get("logging").Populate(&c); err != nil {
		return nil, fmt.Errorf("loading logging config: %v", err)
	}

	for _, outputPath := range c.OutputPaths {
		if outputPath == "stdout" || outputPath == "stderr" {
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(outputPath)); err != nil {
			return nil, fmt.Errorf("creating logging directory: %v", err)
		}
	}

	return cfg, nil
}

// The language server does not create the directory of its own log file.
func ensureServerLogFolder(cfg config.Provider, fs fs.FS) (config.Provider, error) {
	var ls entity.LangServerConfig
	if err := cfg.Get(entity.LangServerConfigKey).Populate(&ls); err != nil {
		return nil, fmt.Errorf("loading %s config: %v", entity.LangServerConfigKey, err)
	}

	for _, arg := range ls.Args {
		logFile, ok := strings.CutPrefix(arg, _serverLogFlag)
		if !ok || logFile == "" {
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(logFile)); err != nil {
			return nil, fmt.Errorf("creating language server log directory: %v", err)
		}
	}

	return cfg, nil
}
