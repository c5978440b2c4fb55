package source

import (
	"archive/tar"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

type entry struct {
	hdr     *tar.Header
	content []byte
}

// Split cuts a packed project into one task per service, in service name order.
// Build tasks carry their context re-rooted, external ones carry nothing.
func Split(project *types.ComposeProject, r io.Reader) ([]types.SplitTask, error) {
	entries, err := readEntries(r)
	if err != nil {
		return nil, err
	}

	tasks := []types.SplitTask{}
	for index, name := range project.Composition.ServiceNames() {
		svc := project.Composition.Services[name]
		task := types.SplitTask{
			Index:       index,
			ServiceName: name,
			Tag:         project.ImageName(name),
		}
		if svc.Build == nil {
			task.External = true
			task.Image = svc.Image
			tasks = append(tasks, task)
			continue
		}

		context, err := contextDir(svc.Build.Context)
		if err != nil {
			return nil, errors.Wrapf(err, "service %s", name)
		}
		task.Context = context
		task.Dockerfile = svc.Build.Dockerfile
		task.Args = svc.Build.Args
		task.Target = svc.Build.Target
		if task.Tar, err = reroot(entries, context); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func contextDir(context string) (string, error) {
	if strings.Contains(context, "://") || strings.HasPrefix(context, "git@") {
		return "", errors.Wrapf(types.ErrNotSupport, "remote build context %s", context)
	}
	if path.IsAbs(context) {
		return "", errors.Wrapf(types.ErrNotSupport, "absolute build context %s", context)
	}
	context = utils.ToPosix(context)
	if context == ".." || strings.HasPrefix(context, "../") {
		return "", errors.Wrapf(types.ErrNotSupport, "build context %s is outside the project", context)
	}
	return context, nil
}

func readEntries(r io.Reader) ([]entry, error) {
	entries := []entry{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{hdr: hdr, content: content})
	}
}

func reroot(entries []entry, context string) ([]byte, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		name := strings.TrimSuffix(e.hdr.Name, "/")
		if !utils.Within(context, name) {
			continue
		}
		if context != "." {
			name = strings.TrimPrefix(strings.TrimPrefix(name, context), "/")
		}
		if name == "" {
			continue
		}
		hdr := *e.hdr
		hdr.Name = name
		if hdr.Typeflag == tar.TypeDir {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(&hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(e.content); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Rewrite copies a tar into a new buffer, swapping the content of entries named in replace.
// Names in replace missing from the tar are appended, then finalize runs.
func Rewrite(in []byte, replace map[string][]byte, finalize func(tw *tar.Writer) error) ([]byte, error) {
	entries, err := readEntries(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := *e.hdr
		content := e.content
		if c, ok := replace[hdr.Name]; ok && hdr.Typeflag == tar.TypeReg {
			content = c
			hdr.Size = int64(len(c))
			seen[hdr.Name] = true
		}
		if err := tw.WriteHeader(&hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, err
		}
	}

	missing := []string{}
	for name := range replace {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		if err := WriteFile(tw, name, replace[name], 0o644); err != nil {
			return nil, err
		}
	}
	if finalize != nil {
		if err := finalize(tw); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile returns the content of a regular file in a tar
func ReadFile(in []byte, name string) ([]byte, bool, error) {
	entries, err := readEntries(bytes.NewReader(in))
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if e.hdr.Name == name && e.hdr.Typeflag == tar.TypeReg {
			return e.content, true, nil
		}
	}
	return nil, false, nil
}

// Names lists the entry names of a tar
func Names(in []byte) ([]string, error) {
	entries, err := readEntries(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	return utils.Map(entries, func(e entry) string { return e.hdr.Name }), nil
}
