package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindFilesByExtensions(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.hcl"))
	write(t, filepath.Join(dir, "nested", "b.yaml"))
	write(t, filepath.Join(dir, "nested", "ignore.txt"))

	files, err := FindFilesByExtensions(dir, ".hcl", ".yaml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "nested", "b.yaml"),
	}, files)
}

func TestFindFilesByExtensionsPassesThroughRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.txt")
	write(t, path)

	// A file given directly is returned regardless of extension.
	files, err := FindFilesByExtensions(path, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestFindFilesByExtensionsMissingRoot(t *testing.T) {
	_, err := FindFilesByExtensions(filepath.Join(t.TempDir(), "nope"), ".hcl")
	assert.Error(t, err)
}

func TestAllExist(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	write(t, a)

	ok, err := AllExist([]string{a})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AllExist([]string{a, b})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = AllExist(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModifiedAfter(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	output := filepath.Join(dir, "out")
	write(t, input)
	write(t, output)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(input, base, base))
	require.NoError(t, os.Chtimes(output, base.Add(time.Minute), base.Add(time.Minute)))

	stale, err := ModifiedAfter([]string{input}, []string{output})
	require.NoError(t, err)
	assert.False(t, stale)

	require.NoError(t, os.Chtimes(input, base.Add(2*time.Minute), base.Add(2*time.Minute)))
	stale, err = ModifiedAfter([]string{input}, []string{output})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestModifiedAfterVanishedFileIsError(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out")
	write(t, output)

	_, err := ModifiedAfter([]string{filepath.Join(dir, "gone")}, []string{output})
	assert.Error(t, err)
}
