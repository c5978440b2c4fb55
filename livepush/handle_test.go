package livepush

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	enginemocks "github.com/projecteru2/barge/engine/mocks"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/types"
)

type recorder struct {
	sync.Mutex
	events []types.ServiceEvent
}

func (r *recorder) OnServiceEvent(_ string, ev types.ServiceEvent) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []types.EventKind {
	r.Lock()
	defer r.Unlock()
	kinds := []types.EventKind{}
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func tarNames(t *testing.T, r io.Reader) map[string]string {
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

const singleStage = `FROM node:18
WORKDIR /usr/src/app
COPY package.json ./
RUN npm install
COPY src/ ./src/
RUN npm run build
CMD ["npm", "start"]
`

func newSingleStage(t *testing.T, e *enginemocks.API, sink types.ProgressSink) (*Handle, string) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.js"), []byte("console.log(1)"), 0o644))
	d, err := ParseDockerfile([]byte(singleStage))
	require.NoError(t, err)
	return New(e, "main-container", dir, d, []string{"imageid"}, sink, "main"), dir
}

func TestActionsNeeded(t *testing.T) {
	e := enginemocks.NewAPI(t)
	h, _ := newSingleStage(t, e, nil)
	assert.True(t, h.ActionsNeeded([]string{"src/index.js"}, nil))
	assert.True(t, h.ActionsNeeded(nil, []string{"package.json"}))
	assert.False(t, h.ActionsNeeded([]string{"README.md"}, nil))
}

func TestPerformNoop(t *testing.T) {
	// no expectations: any engine call fails the test
	e := enginemocks.NewAPI(t)
	sink := &recorder{}
	h, _ := newSingleStage(t, e, sink)
	require.NoError(t, h.Perform(context.Background(), []string{"README.md"}, nil))
	e.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []types.EventKind{types.EventLivepushStart, types.EventLivepushExit}, sink.kinds())
}

func TestPerform(t *testing.T) {
	ctx := context.Background()
	e := enginemocks.NewAPI(t)
	sink := &recorder{}
	h, _ := newSingleStage(t, e, sink)

	e.On("VirtualizationCopyTo", ctx, "main-container", "/", mock.Anything).Run(func(args mock.Arguments) {
		files := tarNames(t, args.Get(3).(io.Reader))
		assert.Equal(t, map[string]string{"usr/src/app/src/index.js": "console.log(1)"}, files)
	}).Return(nil).Once()
	e.On("Execute", ctx, "main-container", mock.MatchedBy(func(c *enginetypes.ExecConfig) bool {
		return c.WorkingDir == "/usr/src/app" && c.Cmd[0] == "rm"
	})).Return("rm-exec", io.NopCloser(bytes.NewBufferString("")), nil).Once()
	e.On("ExecExitCode", ctx, "main-container", "rm-exec").Return(0, nil).Once()
	e.On("Execute", ctx, "main-container", mock.MatchedBy(func(c *enginetypes.ExecConfig) bool {
		return c.Cmd[0] == "/bin/sh" && c.Cmd[2] == "npm run build"
	})).Return("build-exec", io.NopCloser(bytes.NewBufferString("building\ndone\n")), nil).Once()
	e.On("ExecExitCode", ctx, "main-container", "build-exec").Return(0, nil).Once()

	require.NoError(t, h.Perform(ctx, []string{"src/index.js"}, []string{"src/old.js"}))
	kinds := sink.kinds()
	assert.Equal(t, types.EventLivepushStart, kinds[0])
	assert.Equal(t, types.EventLivepushExit, kinds[len(kinds)-1])
	assert.Equal(t, 0, sink.events[len(sink.events)-1].Code)
}

func TestPerformFailedCommand(t *testing.T) {
	ctx := context.Background()
	e := enginemocks.NewAPI(t)
	sink := &recorder{}
	h, _ := newSingleStage(t, e, sink)

	e.On("Execute", ctx, "main-container", mock.Anything).Return("rm-exec", io.NopCloser(bytes.NewBufferString("rm: read-only file system\n")), nil).Once()
	e.On("ExecExitCode", ctx, "main-container", "rm-exec").Return(1, nil).Once()
	err := h.Perform(ctx, nil, []string{"package.json"})
	assert.Error(t, err)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, types.EventLivepushExit, last.Kind)
	assert.Equal(t, 1, last.Code)
	assert.Contains(t, sink.kinds(), types.EventError)
}

func TestCancel(t *testing.T) {
	e := enginemocks.NewAPI(t)
	h, _ := newSingleStage(t, e, nil)
	h.Cancel()
	err := h.Perform(context.Background(), []string{"src/index.js"}, nil)
	assert.ErrorIs(t, err, types.ErrLivepushCancelled)
}

func TestPerformMultiStage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.ts"), []byte("a"), 0o644))
	d, err := ParseDockerfile([]byte(multiStage))
	require.NoError(t, err)

	e := enginemocks.NewAPI(t)
	h := New(e, "final", dir, d, []string{"build-image", "unused-image", "final-image"}, nil, "web")

	e.On("VirtualizationCreate", ctx, mock.MatchedBy(func(opts *enginetypes.VirtualizationCreateOptions) bool {
		return opts.Image == "build-image" && opts.Labels[LabelKey] == "web"
	})).Return(&enginetypes.VirtualizationCreated{ID: "stage0"}, nil).Once()
	e.On("VirtualizationStart", ctx, "stage0").Return(nil).Once()
	e.On("VirtualizationCopyTo", ctx, "stage0", "/", mock.Anything).Run(func(args mock.Arguments) {
		assert.Contains(t, tarNames(t, args.Get(3).(io.Reader)), "src/src/a.ts")
	}).Return(nil).Once()
	e.On("Execute", ctx, "stage0", mock.MatchedBy(func(c *enginetypes.ExecConfig) bool {
		return c.Cmd[2] == "npm run build" && c.Env[0] == "NODE_ENV=production"
	})).Return("build", io.NopCloser(bytes.NewBufferString("")), nil).Once()
	e.On("ExecExitCode", ctx, "stage0", "build").Return(0, nil).Once()

	artifact := &bytes.Buffer{}
	tw := tar.NewWriter(artifact)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "dist/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "dist/index.js", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2}))
	_, err = tw.Write([]byte("js"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	e.On("VirtualizationCopyFrom", ctx, "stage0", "/src/dist").Return(io.NopCloser(artifact), nil).Once()
	e.On("VirtualizationCopyTo", ctx, "final", "/", mock.Anything).Run(func(args mock.Arguments) {
		files := tarNames(t, args.Get(3).(io.Reader))
		assert.Equal(t, "js", files["app/dist/index.js"])
		assert.Contains(t, files, "app/dist/")
	}).Return(nil).Once()

	require.NoError(t, h.Perform(ctx, []string{"src/a.ts"}, nil))

	e.On("VirtualizationRemove", ctx, "stage0", true, true).Return(nil).Once()
	assert.NoError(t, h.Cleanup(ctx))
	assert.NoError(t, h.Cleanup(ctx))
}
