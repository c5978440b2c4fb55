package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestDockerignoreWinsOverGitignore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".dockerignore": "*.log\n!keep.log\n",
		".gitignore":    "keep.log\nbuild/\n",
		"keep.log":      "x",
		"other.log":     "x",
		"build/out.bin": "x",
		"src/main.go":   "x",
	})

	f, err := New(root, true)
	require.NoError(t, err)
	assert.False(t, f.Ignored("keep.log", false))
	assert.True(t, f.Ignored("other.log", false))
	assert.True(t, f.Ignored("build", true))
	assert.True(t, f.Ignored("build/out.bin", false))
	assert.False(t, f.Ignored("src/main.go", false))
	assert.Equal(t, []string{"*.log", "!keep.log"}, f.ExcludePatterns())

	nogit, err := New(root, false)
	require.NoError(t, err)
	assert.False(t, nogit.Ignored("build/out.bin", false))
	assert.True(t, nogit.Ignored("other.log", false))
}

func TestMetadataNeverIgnored(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".dockerignore": ".*\n",
		".gitignore":    ".balena\n",
	})
	f, err := New(root, true)
	require.NoError(t, err)
	assert.False(t, f.Ignored(".balena", true))
	assert.False(t, f.Ignored(".balena/registry-secrets.json", false))
	assert.False(t, f.Ignored(".resin/qemu-execve", false))
	assert.False(t, f.Ignored(".dockerignore", false))
	assert.False(t, f.Ignored(".gitignore", false))
	assert.True(t, f.Ignored(".env", false))
}

func TestNestedGitignore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".gitignore":        "*.tmp\n",
		"web/.gitignore":    "dist\n!important.tmp\n",
		"web/dist/app.js":   "x",
		"web/a.tmp":         "x",
		"web/important.tmp": "x",
		"db/dist/x":         "x",
	})
	f, err := New(root, true)
	require.NoError(t, err)
	assert.True(t, f.Ignored("web/dist/app.js", false))
	assert.False(t, f.Ignored("db/dist/x", false))
	assert.True(t, f.Ignored("web/a.tmp", false))
	assert.False(t, f.Ignored("web/important.tmp", false))
	assert.True(t, f.Ignored(".git", true))
	assert.True(t, f.CanSkipDir("web/dist"))
}

func TestCanSkipDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".dockerignore": "node_modules\n!node_modules/keep\n",
	})
	f, err := New(root, false)
	require.NoError(t, err)
	assert.True(t, f.Ignored("node_modules", true))
	assert.False(t, f.CanSkipDir("node_modules"))
	assert.False(t, f.Ignored("node_modules/keep", false))
	assert.True(t, f.Ignored("node_modules/other", false))
	assert.False(t, f.CanSkipDir("src"))
}
