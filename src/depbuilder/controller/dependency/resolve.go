package dependency

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

// resolve turns a caller path into the normalized absolute path of an existing file under the workspace root.
// Relative paths are taken relative to the root and symbolic links are followed before the containment check.
func (s *service) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.Newf(errors.InvalidRequest, "file path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.InvalidRequest, err)
	}

	resolved, err := s.fs.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(errors.InvalidRequest, &errors.FileNotFoundError{Path: abs})
		}
		return "", errors.Wrap(errors.InvalidRequest, err)
	}
	if !within(s.root, resolved) {
		return "", errors.Wrap(errors.InvalidRequest, &errors.OutsideWorkspaceError{Path: abs, WorkspaceRoot: s.root})
	}

	exists, err := s.fs.FileExists(resolved)
	if err != nil {
		return "", errors.Wrap(errors.InvalidRequest, err)
	}
	if !exists {
		return "", errors.Wrap(errors.InvalidRequest, &errors.FileNotFoundError{Path: abs})
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
