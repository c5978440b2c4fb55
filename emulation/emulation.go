package emulation

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/source"
)

const (
	// ContextPath is where the qemu binary lands in a build context
	ContextPath = ".balena/qemu-execve"
	// ImagePath is where the qemu binary is copied in every stage
	ImagePath = "/tmp/qemu-execve"
)

var (
	armTargets = map[string]string{
		"rpi":     "arm",
		"armv7hf": "arm",
		"armhf":   "arm",
		"aarch64": "aarch64",
		"arm64":   "aarch64",
	}
	armHosts = map[string]bool{
		"aarch64": true,
		"arm64":   true,
		"armv7l":  true,
		"armv6l":  true,
		"arm":     true,
	}
)

// QemuArch maps a target arch to the qemu arch emulating it, empty if none
func QemuArch(arch string) string {
	return armTargets[arch]
}

// NeedsQemu tells whether building for arch on this engine needs emulation
func NeedsQemu(ctx context.Context, e engine.API, arch string) (bool, error) {
	if QemuArch(arch) == "" {
		return false, nil
	}
	info, err := e.Info(ctx)
	if err != nil {
		return false, err
	}
	if armHosts[strings.ToLower(info.Architecture)] {
		return false, nil
	}
	// docker desktop registers binfmt handlers itself
	if strings.Contains(info.OperatingSystem, "Docker Desktop") {
		log.WithFunc("emulation.NeedsQemu").Debug(ctx, "docker desktop detected, emulation is built in")
		return false, nil
	}
	return true, nil
}

// Inject makes a Finalize hook adding the qemu binary to a context
func Inject(binary []byte) func(tw *tar.Writer) error {
	return func(tw *tar.Writer) error {
		return source.WriteFile(tw, ContextPath, binary, 0o755)
	}
}

// Preprocess rewrites a dockerfile so every stage runs its commands through qemu
func Preprocess(dockerfile []byte) ([]byte, error) {
	result, err := parser.Parse(bytes.NewReader(dockerfile))
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(dockerfile), "\n")
	out := []string{}
	next := 1
	for _, node := range result.AST.Children {
		for ; next < node.StartLine && next <= len(lines); next++ {
			out = append(out, lines[next-1])
		}
		original := strings.Join(lines[node.StartLine-1:min(node.EndLine, len(lines))], "\n")
		next = node.EndLine + 1

		switch strings.ToLower(node.Value) {
		case "from":
			out = append(out, original, copyInstruction())
		case "run":
			if len(node.Heredocs) > 0 {
				out = append(out, original)
				continue
			}
			out = append(out, runInstruction(node))
		default:
			out = append(out, original)
		}
	}
	for ; next <= len(lines); next++ {
		out = append(out, lines[next-1])
	}
	return []byte(strings.Join(out, "\n")), nil
}

func copyInstruction() string {
	return "COPY " + jsonArray([]string{ContextPath, ImagePath})
}

func runInstruction(node *parser.Node) string {
	args := []string{}
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}
	cmd := []string{ImagePath, "-execve"}
	if node.Attributes["json"] {
		cmd = append(cmd, args...)
	} else {
		cmd = append(cmd, "/bin/sh", "-c", strings.Join(args, " "))
	}
	parts := append([]string{"RUN"}, node.Flags...)
	return strings.Join(append(parts, jsonArray(cmd)), " ")
}

func jsonArray(a []string) string {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(a)
	return strings.TrimSpace(buf.String())
}
