package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeModule(t *testing.T, dir, modPath string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "go.mod"), "module "+modPath+"\n\ngo 1.22\n")
}

func names(arts []Artifact) []string {
	out := make([]string, len(arts))
	for i, a := range arts {
		out[i] = a.Name
	}
	return out
}

func TestDiscoverDedupFirstRootWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeModule(t, filepath.Join(first, "app"), "example.com/app")
	writeModule(t, filepath.Join(second, "copy"), "example.com/app")
	writeModule(t, filepath.Join(second, "lib"), "example.com/lib")

	arts, err := Discover(context.Background(), []string{first, second}, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"example.com/app", "example.com/lib"}, names(arts))
	assert.Equal(t, filepath.Join(first, "app", "go.mod"), arts[0].Path)
	assert.Equal(t, filepath.Join(first, "app"), arts[0].Dir)
	assert.Equal(t, first, arts[0].Root)

	// Swapping the roots swaps which copy is kept.
	arts, err = Discover(context.Background(), []string{second, first}, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "copy", "go.mod"), arts[0].Path)
}

func TestDiscoverMissingRootIsFatal(t *testing.T) {
	good := t.TempDir()
	writeModule(t, good, "example.com/app")
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := Discover(context.Background(), []string{good, missing}, Options{})
	require.Error(t, err)

	var rootErr *RootError
	require.True(t, errors.As(err, &rootErr))
	assert.Equal(t, missing, rootErr.Root)
}

func TestDiscoverRootMustBeDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")

	_, err := Discover(context.Background(), []string{file}, Options{})
	var rootErr *RootError
	require.ErrorAs(t, err, &rootErr)
}

func TestDiscoverUnreadableIgnoreFileIsFatal(t *testing.T) {
	good := t.TempDir()
	writeModule(t, good, "example.com/app")
	bad := t.TempDir()
	writeModule(t, bad, "example.com/other")
	// A directory where the ignore file should be cannot be read as one.
	require.NoError(t, os.Mkdir(filepath.Join(bad, DefaultIgnoreFile), 0o755))

	arts, err := Discover(context.Background(), []string{good, bad}, Options{})
	assert.Nil(t, arts)
	var rootErr *RootError
	require.ErrorAs(t, err, &rootErr)
	assert.Equal(t, bad, rootErr.Root)
	assert.Contains(t, err.Error(), DefaultIgnoreFile)

	arts, err = Discover(context.Background(), []string{good, bad}, Options{IgnoreFile: "-"})
	require.NoError(t, err)
	assert.Len(t, arts, 2)
}

func TestDiscoverNoRoots(t *testing.T) {
	_, err := Discover(context.Background(), nil, Options{})
	require.ErrorIs(t, err, ErrNoRoots)
}

func TestDiscoverFilters(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "app"), "example.com/app")
	writeModule(t, filepath.Join(root, "i18n"), "example.com/app.resources")
	writeModule(t, filepath.Join(root, "assets"), "example.com/app/resources")
	writeModule(t, filepath.Join(root, "vendor", "dep"), "example.com/vendored")
	writeModule(t, filepath.Join(root, "app", "testdata", "fixture"), "example.com/fixture")
	writeModule(t, filepath.Join(root, ".cache", "mod"), "example.com/cached")
	writeModule(t, filepath.Join(root, "scratch", "tmp"), "example.com/scratch")
	writeFile(t, filepath.Join(root, DefaultIgnoreFile), "scratch/\n")

	arts, err := Discover(context.Background(), []string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/app"}, names(arts))

	arts, err = Discover(context.Background(), []string{root}, Options{IgnoreFile: "-"})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/app", "example.com/scratch"}, names(arts))
}

func TestDiscoverInclude(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "a"), "example.com/nuketest")
	writeModule(t, filepath.Join(root, "b"), "example.com/nuketest/tools")
	writeModule(t, filepath.Join(root, "c"), "example.com/other")

	arts, err := Discover(context.Background(), []string{root}, Options{Include: []string{"example.com/nuketest*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/nuketest"}, names(arts))

	arts, err = Discover(context.Background(), []string{root}, Options{Include: []string{"example.com/nuketest", "example.com/nuketest/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/nuketest", "example.com/nuketest/tools"}, names(arts))
}

func TestDiscoverCorruptModuleFile(t *testing.T) {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "a"), "example.com/a")
	bad := filepath.Join(root, "b", "go.mod")
	writeFile(t, bad, "go 1.22\n")

	_, err := Discover(context.Background(), []string{root}, Options{})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, bad, loadErr.Path)
}

func TestDiscoverBadPattern(t *testing.T) {
	_, err := Discover(context.Background(), []string{t.TempDir()}, Options{Glob: "go.[mod"})
	require.Error(t, err)
}

func TestIsResourceContainer(t *testing.T) {
	assert.True(t, IsResourceContainer("example.com/app.resources"))
	assert.True(t, IsResourceContainer("example.com/app/resources"))
	assert.False(t, IsResourceContainer("example.com/resourcesmgr"))
	assert.False(t, IsResourceContainer("example.com/app"))
}
