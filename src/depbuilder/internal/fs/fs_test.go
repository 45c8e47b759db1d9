package fs

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkdirAll(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	err := fs.MkdirAll(path.Join(dir, "foo/bar"))
	assert.NoError(t, err)
}

func TestDirExists(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		dir := t.TempDir()
		fs := New()
		result, err := fs.DirExists(dir)
		assert.NoError(t, err)
		assert.True(t, result)
	})

	t.Run("does not exist", func(t *testing.T) {
		dir := t.TempDir()
		fs := New()
		result, err := fs.DirExists(dir + "foo")
		assert.NoError(t, err)
		assert.False(t, result)
	})

	t.Run("file is not a dir", func(t *testing.T) {
		file := path.Join(t.TempDir(), "a")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0666))
		result, err := New().DirExists(file)
		assert.NoError(t, err)
		assert.False(t, result)
	})
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := path.Join(dir, "a.cc")
	require.NoError(t, os.WriteFile(file, []byte("int main() {}"), 0666))
	fs := New()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "exists", path: file, want: true},
		{name: "does not exist", path: path.Join(dir, "b.cc"), want: false},
		{name: "directory", path: dir, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := fs.FileExists(tt.path)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestReadWriteRemove(t *testing.T) {
	dir := t.TempDir()
	file := path.Join(dir, "a")
	fs := New()

	require.NoError(t, fs.WriteFile(file, []byte("contents")))
	data, err := fs.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))

	info, err := fs.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(len("contents")), info.Size())

	assert.NoError(t, fs.Remove(file))
	_, err = fs.ReadFile(file)
	assert.Error(t, err)
}

func TestEvalSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := path.Join(dir, "target.cc")
	link := path.Join(dir, "link.cc")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0666))
	require.NoError(t, os.Symlink(target, link))

	fs := New()
	resolved, err := fs.EvalSymlinks(link)
	require.NoError(t, err)
	expected, err := fs.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestTempFile(t *testing.T) {
	dir := t.TempDir()
	f, err := New().TempFile(dir, "out-*.log")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, dir, path.Dir(f.Name()))
}
