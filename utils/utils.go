package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const shortenLength = 12

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

// SHA256 .
func SHA256(input string) string {
	c := sha256.New()
	c.Write([]byte(input))
	return hex.EncodeToString(c.Sum(nil))
}

// RandomHex returns 32 random hex chars
func RandomHex() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// TruncateID truncate container or image ID
func TruncateID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > shortenLength {
		return id[:shortenLength]
	}
	return id
}

// NormalizeName makes a name safe for compose projects and image repos
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = unsafeName.ReplaceAllString(name, "")
	return strings.Trim(name, "_-")
}

// ImageName makes the canonical local image name of a service
func ImageName(project, service, tag string) string {
	name := NormalizeName(project) + "_" + NormalizeName(service)
	if tag != "" {
		name += ":" + strings.ToLower(tag)
	}
	return name
}

// ToPosix converts a host relative path into a tar entry name
func ToPosix(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// Within reports whether p is dir or below dir, both posix and relative
func Within(dir, p string) bool {
	dir = path.Clean(dir)
	if dir == "." {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// WithTimeout runs f with a timeout ctx
func WithTimeout(ctx context.Context, timeout time.Duration, f func(ctx2 context.Context)) {
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	f(ctx2)
}

// Tail returns the last n lines of s
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return fmt.Sprintf("...\n%s", strings.Join(lines[len(lines)-n:], "\n"))
}
