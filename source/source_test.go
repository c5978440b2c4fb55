package source

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/barge/ignore"
	"github.com/projecteru2/barge/types"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func extract(t *testing.T, r io.Reader) map[string]string {
	files := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files
		}
		require.NoError(t, err)
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(b)
	}
}

func packAll(t *testing.T, root string, opts PackOptions) []byte {
	rc, err := Pack(context.Background(), root, opts)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestPackRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Dockerfile"), "FROM alpine\r\nRUN true\r\n")
	writeFile(t, filepath.Join(root, "src", "app", "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "bin.dat"), "a\x00b\r\n")
	writeFile(t, filepath.Join(root, "logs", "debug.log"), "noise")
	writeFile(t, filepath.Join(root, ".dockerignore"), "logs\n")
	require.NoError(t, os.Symlink("src/app/main.go", filepath.Join(root, "link")))

	filter, err := ignore.New(root, true)
	require.NoError(t, err)
	b := packAll(t, root, PackOptions{
		Filter:     filter,
		ConvertEOL: true,
		Finalize: func(tw *tar.Writer) error {
			return WriteFile(tw, ".balena/extra", []byte("last"), 0o644)
		},
	})
	files := extract(t, bytes.NewReader(b))

	assert.Equal(t, "FROM alpine\nRUN true\n", files["Dockerfile"])
	assert.Equal(t, "a\x00b\r\n", files["bin.dat"])
	assert.Equal(t, "package main\n", files["src/app/main.go"])
	assert.Contains(t, files, "src/")
	assert.Contains(t, files, "src/app/")
	assert.Contains(t, files, "link")
	assert.Contains(t, files, ".dockerignore")
	assert.NotContains(t, files, "logs/")
	assert.NotContains(t, files, "logs/debug.log")
	assert.Equal(t, "last", files[".balena/extra"])

	names, err := Names(b)
	require.NoError(t, err)
	for _, name := range names {
		assert.NotContains(t, name, `\`)
	}
}

func TestPackNoConvert(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "x\r\n")
	files := extract(t, bytes.NewReader(packAll(t, root, PackOptions{})))
	assert.Equal(t, "x\r\n", files["a.txt"])
}

func TestPackErrors(t *testing.T) {
	_, err := Pack(context.Background(), filepath.Join(t.TempDir(), "missing"), PackOptions{})
	assert.ErrorIs(t, err, fs.ErrNotExist)

	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "secret"), "x")
	require.NoError(t, os.Chmod(filepath.Join(root, "secret"), 0))
	rc, err := Pack(context.Background(), root, PackOptions{})
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestIsText(t *testing.T) {
	assert.True(t, IsText([]byte("hello")))
	assert.False(t, IsText([]byte("he\x00llo")))
	big := append(bytes.Repeat([]byte("a"), sniffLen), 0)
	assert.True(t, IsText(big))
	assert.Equal(t, []byte("a\nb\n"), ConvertEOL([]byte("a\r\nb\r\n")))
}

func TestSplit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "web", "Dockerfile"), "FROM nginx\n")
	writeFile(t, filepath.Join(root, "web", "html", "index.html"), "hi")
	writeFile(t, filepath.Join(root, "worker", "Dockerfile"), "FROM alpine\n")
	writeFile(t, filepath.Join(root, "README"), "readme")
	b := packAll(t, root, PackOptions{})

	project := &types.ComposeProject{
		Name: "app",
		Composition: &types.Composition{Services: map[string]*types.Service{
			"web":    {Name: "web", Build: &types.BuildSpec{Context: "./web"}},
			"worker": {Name: "worker", Build: &types.BuildSpec{Context: "worker", Dockerfile: "Dockerfile", Target: "prod"}},
			"all":    {Name: "all", Build: &types.BuildSpec{Context: "."}},
			"db":     {Name: "db", Image: "postgres"},
		}},
		Descriptors: []types.ImageDescriptor{
			{ServiceName: "web", Tag: "app_web"},
			{ServiceName: "db", Tag: "app_db"},
		},
	}
	tasks, err := Split(project, bytes.NewReader(b))
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, "all", tasks[0].ServiceName)
	assert.Equal(t, "db", tasks[1].ServiceName)
	assert.True(t, tasks[1].External)
	assert.Nil(t, tasks[1].Tar)
	assert.Equal(t, "postgres", tasks[1].Image)
	assert.Equal(t, "app_db", tasks[1].Tag)

	web := extract(t, bytes.NewReader(tasks[2].Tar))
	assert.Equal(t, "web", tasks[2].Context)
	assert.Equal(t, "app_web", tasks[2].Tag)
	assert.Equal(t, "FROM nginx\n", web["Dockerfile"])
	assert.Equal(t, "hi", web["html/index.html"])
	assert.NotContains(t, web, "README")

	assert.Equal(t, "prod", tasks[3].Target)
	assert.Equal(t, "Dockerfile", tasks[3].Dockerfile)
	all := extract(t, bytes.NewReader(tasks[0].Tar))
	assert.Contains(t, all, "README")
	assert.Contains(t, all, "web/Dockerfile")

	project.Composition.Services["bad"] = &types.Service{Name: "bad", Build: &types.BuildSpec{Context: "../other"}}
	_, err = Split(project, bytes.NewReader(b))
	assert.ErrorIs(t, err, types.ErrNotSupport)
}

func TestRewrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Dockerfile.template"), "FROM %%BALENA_ARCH%%\n")
	orig := packAll(t, root, PackOptions{})

	out, err := Rewrite(orig, map[string][]byte{
		"Dockerfile.template": []byte("FROM armv7hf\n"),
		"Dockerfile":          []byte("FROM armv7hf\n"),
	}, func(tw *tar.Writer) error {
		return WriteFile(tw, "/.balena/extra", []byte("x"), 0o755)
	})
	require.NoError(t, err)
	files := extract(t, bytes.NewReader(out))
	assert.Equal(t, "FROM armv7hf\n", files["Dockerfile.template"])
	assert.Equal(t, "FROM armv7hf\n", files["Dockerfile"])
	assert.Equal(t, "x", files[".balena/extra"])

	content, ok, err := ReadFile(orig, "Dockerfile.template")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "FROM %%BALENA_ARCH%%\n", string(content))
	_, ok, err = ReadFile(orig, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInjectRegistrySecrets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Dockerfile"), "FROM alpine\n")
	writeFile(t, filepath.Join(root, RegistrySecretsPath), `{"old.example.com":{}}`)
	orig := packAll(t, root, PackOptions{})

	same, err := InjectRegistrySecrets(orig, nil)
	require.NoError(t, err)
	assert.Equal(t, orig, same)

	out, err := InjectRegistrySecrets(orig, map[string]types.AuthConfig{"r.example.com": {Username: "u", Password: "p"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"r.example.com":{"username":"u","password":"p"}}`, extract(t, bytes.NewReader(out))[RegistrySecretsPath])
	names, err := Names(out)
	require.NoError(t, err)
	count := 0
	for _, name := range names {
		if name == RegistrySecretsPath {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
