package emulation

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginemocks "github.com/projecteru2/barge/engine/mocks"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/source"
	"github.com/projecteru2/barge/types"
)

func TestNeedsQemu(t *testing.T) {
	ctx := context.Background()
	e := enginemocks.NewAPI(t)

	need, err := NeedsQemu(ctx, e, "amd64")
	assert.NoError(t, err)
	assert.False(t, need)

	e.On("Info", ctx).Return(&enginetypes.Info{Architecture: "x86_64", OperatingSystem: "Ubuntu 22.04"}, nil).Once()
	need, err = NeedsQemu(ctx, e, "armv7hf")
	assert.NoError(t, err)
	assert.True(t, need)

	e.On("Info", ctx).Return(&enginetypes.Info{Architecture: "aarch64"}, nil).Once()
	need, err = NeedsQemu(ctx, e, "armv7hf")
	assert.NoError(t, err)
	assert.False(t, need)

	e.On("Info", ctx).Return(&enginetypes.Info{Architecture: "x86_64", OperatingSystem: "Docker Desktop"}, nil).Once()
	need, err = NeedsQemu(ctx, e, "aarch64")
	assert.NoError(t, err)
	assert.False(t, need)
}

func TestPreprocess(t *testing.T) {
	dockerfile := `# syntax comment
FROM balenalib/rpi-alpine AS build
RUN apk add --no-cache \
    make gcc
RUN ["make", "all"]
COPY . /app

FROM alpine
COPY --from=build /app/bin /bin
CMD ["/bin/app"]
`
	out, err := Preprocess([]byte(dockerfile))
	require.NoError(t, err)
	expected := `# syntax comment
FROM balenalib/rpi-alpine AS build
COPY [".balena/qemu-execve","/tmp/qemu-execve"]
RUN ["/tmp/qemu-execve","-execve","/bin/sh","-c","apk add --no-cache     make gcc"]
RUN ["/tmp/qemu-execve","-execve","make","all"]
COPY . /app

FROM alpine
COPY [".balena/qemu-execve","/tmp/qemu-execve"]
COPY --from=build /app/bin /bin
CMD ["/bin/app"]
`
	assert.Equal(t, expected, string(out))
}

func TestInject(t *testing.T) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	require.NoError(t, Inject([]byte("bin"))(tw))
	require.NoError(t, tw.Close())
	content, ok, err := source.ReadFile(buf.Bytes(), ContextPath)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bin", string(content))
}

func qemuArchive(t *testing.T, arch string) []byte {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, source.WriteFile(tw, "qemu-v7-"+arch+"/qemu-"+arch+"-static", []byte("qemu-"+arch), 0o755))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if !strings.HasSuffix(r.URL.Path, "-arm.tar.gz") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(qemuArchive(t, "arm"))
	}))
	defer server.Close()

	config := types.EmulationConfig{
		QemuVersion: "v7",
		URL:         server.URL + "/%s/qemu-%s-%s.tar.gz",
		CacheDir:    filepath.Join(t.TempDir(), "bin"),
	}
	ctx := context.Background()
	content, err := Install(ctx, server.Client(), config, "armv7hf")
	require.NoError(t, err)
	assert.Equal(t, "qemu-arm", string(content))
	content, err = Install(ctx, server.Client(), config, "rpi")
	require.NoError(t, err)
	assert.Equal(t, "qemu-arm", string(content))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	_, err = Install(ctx, server.Client(), config, "aarch64")
	assert.Error(t, err)
	_, err = Install(ctx, server.Client(), config, "amd64")
	assert.ErrorIs(t, err, types.ErrNotSupport)
}
