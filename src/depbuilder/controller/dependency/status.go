package dependency

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

const _versionFlag = "--version"

// InvalidateFile implements Service.
func (s *service) InvalidateFile(ctx context.Context, path string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(path) == "" {
		return 0, errors.Newf(errors.InvalidRequest, "file path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)
	// A deleted file still has entries to drop, so a failed resolution keeps the cleaned path.
	if resolved, err := s.fs.EvalSymlinks(path); err == nil {
		path = resolved
	}

	n := s.cache.InvalidateFile(ctx, path)
	if n > 0 {
		s.logger.Infow("invalidated cache entries", "file", path, "count", n)
	}
	return n, nil
}

// HealthStatus implements Service.
func (s *service) HealthStatus(ctx context.Context) (*entity.HealthStatus, error) {
	handles := s.pool.Handles()
	stats := s.cache.Stats()
	status := &entity.HealthStatus{
		ServerCommand: s.server.Command,
		WorkspaceRoot: s.root,
		Handles:       handles,
		CacheEntries:  stats.Entries,
		CacheCapacity: stats.Capacity,
		Metrics:       s.metrics.Snapshot(),
		Warnings:      append([]string(nil), s.warnings...),
	}

	version, versionErr := s.serverVersion(ctx)
	if versionErr != nil {
		status.Warnings = append(status.Warnings, versionErr.Error())
	}
	status.ServerVersion = version
	if live := s.pool.ServerVersion(); live != "" {
		status.ServerVersion = live
	}

	indexDir := s.server.CacheDirectory
	if !filepath.IsAbs(indexDir) {
		indexDir = filepath.Join(s.root, indexDir)
	}
	if exists, err := s.fs.DirExists(indexDir); err != nil || !exists {
		status.Warnings = append(status.Warnings, fmt.Sprintf("index cache %s does not exist yet", indexDir))
	}

	live := 0
	for _, h := range handles {
		if h.State == entity.HandleReady || h.State == entity.HandleBusy {
			live++
		}
	}
	status.Healthy = s.checkOpen() == nil && (versionErr == nil || live > 0)
	return status, nil
}

// serverVersion runs the server command with --version and returns the first line it prints.
func (s *service) serverVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, s.server.Command, _versionFlag)
	cmd.Dir = s.root
	stdout, stderr, exitCode, err := s.executor.Run(cmd)
	if err != nil {
		return "", fmt.Errorf("running %s %s: %w", s.server.Command, _versionFlag, err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("%s %s exited with code %d: %s", s.server.Command, _versionFlag, exitCode, strings.TrimSpace(stderr))
	}

	out := strings.TrimSpace(stdout)
	if out == "" {
		out = strings.TrimSpace(stderr)
	}
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}
	return out, nil
}
