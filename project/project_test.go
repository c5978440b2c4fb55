package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/barge/types"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadCompose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docker-compose.yml"), `
version: "2.1"
volumes:
  data: {}
services:
  web:
    build:
      context: ./web
      args:
        FOO: bar
    volumes:
      - data:/data
    ports:
      - "80:80"
  db:
    image: postgres:15
`)
	writeFile(t, filepath.Join(dir, "web", "Dockerfile"), "FROM alpine\n")

	p, err := Load(ctx, &types.ProjectOptions{Path: dir, Name: "My App"})
	require.NoError(t, err)
	assert.Equal(t, "myapp", p.Name)
	assert.Equal(t, []string{"db", "web"}, p.Composition.ServiceNames())
	require.Len(t, p.Descriptors, 2)

	db, ok := p.Descriptor("db")
	require.True(t, ok)
	assert.True(t, db.External())
	assert.Equal(t, "postgres:15", db.Image)

	web, ok := p.Descriptor("web")
	require.True(t, ok)
	assert.False(t, web.External())
	assert.Equal(t, "./web", web.Build.Context)
	assert.Equal(t, "", web.Build.Dockerfile)
	assert.Equal(t, "bar", web.Build.Args["FOO"])
	assert.Equal(t, "myapp_web", web.Tag)
	assert.Equal(t, []string{"data:/data"}, p.Composition.Services["web"].Volumes)
	assert.Contains(t, p.Composition.Services["web"].Extra, "ports")
	assert.NotContains(t, p.Composition.Services["web"].Extra, "build")
	assert.Equal(t, "myapp: db(image postgres:15), web(build ./web)", String(p))
}

func TestLoadDefaultComposition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Dockerfile.custom"), "FROM alpine\n")

	opts := &types.ProjectOptions{Path: dir, Name: "app", Dockerfile: "Dockerfile.custom", Tag: "Dev"}
	p, err := Load(ctx, opts)
	require.NoError(t, err)
	require.Len(t, p.Descriptors, 1)
	main, ok := p.Descriptor(types.DefaultServiceName)
	require.True(t, ok)
	assert.Equal(t, "Dockerfile.custom", main.Build.Dockerfile)
	assert.Equal(t, "app_main:dev", main.Tag)
	svc := p.Composition.Services[types.DefaultServiceName]
	assert.Equal(t, []string{"resin-data:/data"}, svc.Volumes)
	assert.Equal(t, "1", svc.Labels["io.resin.features.supervisor-api"])
	assert.Equal(t, true, svc.Extra["privileged"])

	// a compose file appearing later is picked up and the override ignored
	writeFile(t, filepath.Join(dir, "docker-compose.yaml"), `
services:
  api:
    build: .
`)
	p, err = Load(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, p.Composition.ServiceNames())
	api, ok := p.Descriptor("api")
	require.True(t, ok)
	assert.Equal(t, "", api.Build.Dockerfile)
}

func TestLoadDefaultCompositionNoDockerfile(t *testing.T) {
	p, err := Load(context.Background(), &types.ProjectOptions{Path: t.TempDir(), Name: "app"})
	require.NoError(t, err)
	d, ok := p.Descriptor(types.DefaultServiceName)
	require.True(t, ok)
	assert.Equal(t, "", d.Build.Dockerfile)
}

func TestLoadImage(t *testing.T) {
	p, err := Load(context.Background(), &types.ProjectOptions{Name: "app", Image: "nginx:latest"})
	require.NoError(t, err)
	d, ok := p.Descriptor(types.DefaultServiceName)
	require.True(t, ok)
	assert.True(t, d.External())
	assert.Equal(t, "nginx:latest", d.Image)

	_, err = Load(context.Background(), &types.ProjectOptions{Image: "nginx", Dockerfile: "Dockerfile"})
	assert.ErrorIs(t, err, types.ErrConflictingOptions)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	writeFile(t, file, "x")
	_, err := Load(ctx, &types.ProjectOptions{Path: file})
	assert.ErrorIs(t, err, types.ErrBadProjectDir)

	writeFile(t, filepath.Join(dir, "docker-compose.yml"), "services: [\n")
	_, err = Load(ctx, &types.ProjectOptions{Path: dir})
	assert.ErrorIs(t, err, types.ErrComposeParse)
	assert.Contains(t, err.Error(), "docker-compose.yml")

	writeFile(t, filepath.Join(dir, "docker-compose.yml"), `
services:
  web:
    image: nginx
    volumes:
      - missing:/data
`)
	_, err = Load(ctx, &types.ProjectOptions{Path: dir})
	assert.Error(t, err)

	writeFile(t, filepath.Join(dir, "docker-compose.yml"), `
services:
  web:
    image: nginx
    networks:
      - backend
`)
	_, err = Load(ctx, &types.ProjectOptions{Path: dir})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := &types.Composition{
		Services: map[string]*types.Service{
			"web": {Name: "web", Volumes: []string{"data:/data", "./src:/src", "/tmp"}, Networks: []string{"front"}},
		},
		Volumes:  map[string]map[string]any{},
		Networks: map[string]map[string]any{"front": {}},
	}
	assert.ErrorIs(t, validate(c), types.ErrUndeclaredVolume)
	c.Volumes["data"] = map[string]any{}
	assert.NoError(t, validate(c))
	c.Services["web"].Networks = []string{"back"}
	assert.ErrorIs(t, validate(c), types.ErrUndeclaredNetwork)
}
