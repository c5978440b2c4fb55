package calcium

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/projecteru2/barge/cloud"
	"github.com/projecteru2/barge/device"
	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/types"
)

func newTestConfig() types.Config {
	return types.Config{
		GlobalTimeout:  30 * time.Second,
		MaxConcurrency: 4,
		Docker: types.DockerConfig{
			Endpoint:    "mock://x86_64",
			LabelPrefix: "io.barge.local",
		},
		API: types.APIConfig{
			Registry: "registry2.balena-cloud.com",
		},
		Device: types.DeviceConfig{
			SupervisorPort: 48484,
			DockerPort:     2375,
			PollInterval:   10 * time.Millisecond,
			MinSupervisor:  "7.21.4",
		},
		Livepush: types.LivepushConfig{
			Debounce: 50 * time.Millisecond,
		},
	}
}

// NewTestCluster wires mocks into a Calcium, nil mocks keep the defaults
func NewTestCluster(t *testing.T, api cloud.API, dev device.API, e engine.API) *Calcium {
	opts := []Option{}
	if api != nil {
		opts = append(opts, WithCloud(api))
	}
	if dev != nil {
		opts = append(opts, WithDeviceFactory(func(string) device.API { return dev }))
	}
	if e != nil {
		opts = append(opts, WithEngineGetter(func(context.Context, enginetypes.Params) (engine.API, error) { return e, nil }))
	}
	c, err := New(context.Background(), newTestConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Finalizer)
	return c
}

func writeProject(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func stream(lines ...string) func() io.ReadCloser {
	return func() io.ReadCloser {
		return io.NopCloser(bytes.NewBufferString(strings.Join(lines, "\n") + "\n"))
	}
}

type recorder struct {
	sync.Mutex
	events map[string][]types.ServiceEvent
}

func newRecorder() *recorder {
	return &recorder{events: map[string][]types.ServiceEvent{}}
}

func (r *recorder) OnServiceEvent(service string, ev types.ServiceEvent) {
	r.Lock()
	defer r.Unlock()
	r.events[service] = append(r.events[service], ev)
}

func (r *recorder) messages(service string, kind types.EventKind) []string {
	r.Lock()
	defer r.Unlock()
	msgs := []string{}
	for _, ev := range r.events[service] {
		if ev.Kind == kind {
			msgs = append(msgs, ev.Message)
		}
	}
	return msgs
}
