package source

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/ignore"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

const (
	// bytes sniffed for a NUL to tell binary from text
	sniffLen = 8000
	// RegistrySecretsPath is where registry secrets live in a build context
	RegistrySecretsPath = ".balena/registry-secrets.json"
)

// PackOptions .
type PackOptions struct {
	// Filter drops ignored entries, nil packs everything
	Filter     *ignore.Filter
	ConvertEOL bool
	// Finalize runs after the walk, before the tar is closed
	Finalize func(tw *tar.Writer) error
}

// Pack streams root as a tar archive.
// Errors met while walking close the stream with the error unchanged.
func Pack(ctx context.Context, root string, opts PackOptions) (io.ReadCloser, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.Wrapf(types.ErrBadProjectDir, "%s", root)
	}

	pr, pw := io.Pipe()
	utils.SentryGo(func() {
		tw := tar.NewWriter(pw)
		err := walk(ctx, root, tw, opts)
		if err == nil && opts.Finalize != nil {
			err = opts.Finalize(tw)
		}
		if err == nil {
			err = tw.Close()
		}
		if err != nil {
			log.WithFunc("source.Pack").WithField("root", root).Error(ctx, err, "pack failed")
		}
		_ = pw.CloseWithError(err)
	})
	return pr, nil
}

func walk(ctx context.Context, root string, tw *tar.Writer, opts PackOptions) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = utils.ToPosix(rel)
		if opts.Filter != nil && opts.Filter.Ignored(rel, d.IsDir()) {
			if d.IsDir() && opts.Filter.CanSkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		return writeEntry(tw, path, rel, d, opts.ConvertEOL)
	})
}

func writeEntry(tw *tar.Writer, path, rel string, d fs.DirEntry, convertEOL bool) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
		link = filepath.ToSlash(link)
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Uname, hdr.Gname = "", ""
	hdr.Uid, hdr.Gid = 0, 0
	if info.IsDir() {
		hdr.Name += "/"
	}
	if !info.Mode().IsRegular() {
		return tw.WriteHeader(hdr)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if !convertEOL {
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		return err
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	content = ConvertEOL(content)
	hdr.Size = int64(len(content))
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write(content)
	return err
}

// IsText reports whether content has no NUL in its head
func IsText(content []byte) bool {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return bytes.IndexByte(head, 0) < 0
}

// ConvertEOL turns CRLF into LF in text content, binary content is untouched
func ConvertEOL(content []byte) []byte {
	if !IsText(content) {
		return content
	}
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}

// WriteFile adds one regular file to a tar
func WriteFile(tw *tar.Writer, name string, content []byte, mode int64) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     strings.TrimPrefix(name, "/"),
		Size:     int64(len(content)),
		Mode:     mode,
		ModTime:  time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// InjectRegistrySecrets puts registry secrets into a service context, replacing any shipped one
func InjectRegistrySecrets(in []byte, secrets map[string]types.AuthConfig) ([]byte, error) {
	if len(secrets) == 0 {
		return in, nil
	}
	content, err := json.Marshal(secrets)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Rewrite(in, map[string][]byte{RegistrySecretsPath: content}, nil)
}
