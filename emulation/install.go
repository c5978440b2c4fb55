package emulation

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
)

// Install downloads the qemu binary for arch into the cache dir once,
// later calls return the cached copy
func Install(ctx context.Context, client *http.Client, config types.EmulationConfig, arch string) ([]byte, error) {
	qemuArch := QemuArch(arch)
	if qemuArch == "" {
		return nil, errors.Wrapf(types.ErrNotSupport, "no emulation for %s", arch)
	}
	logger := log.WithFunc("emulation.Install").WithField("arch", qemuArch)
	binPath := filepath.Join(config.CacheDir, "qemu-execve-"+qemuArch)
	if content, err := os.ReadFile(binPath); err == nil {
		return content, nil
	}

	url := fmt.Sprintf(config.URL, config.QemuVersion, config.QemuVersion, qemuArch)
	logger.Infof(ctx, "downloading %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("download %s: %s", url, resp.Status)
	}

	content, err := extract(resp.Body, fmt.Sprintf("qemu-%s-static", qemuArch))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.CacheDir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	tmp := binPath + ".part"
	if err := os.WriteFile(tmp, content, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return content, errors.WithStack(os.Rename(tmp, binPath))
}

func extract(r io.Reader, name string) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errors.Newf("%s not found in archive", name)
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if path.Base(hdr.Name) == name && hdr.Typeflag == tar.TypeReg {
			content, err := io.ReadAll(tr)
			return content, errors.WithStack(err)
		}
	}
}
