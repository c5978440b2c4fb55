package ignore

import (
	"bufio"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/docker/docker/builder/dockerignore"
	"github.com/docker/docker/pkg/fileutils"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/projecteru2/barge/utils"
)

const (
	// DockerIgnoreFile .
	DockerIgnoreFile = ".dockerignore"
	// GitIgnoreFile .
	GitIgnoreFile = ".gitignore"
)

var (
	metadataDirs = []string{".balena", ".resin"}
	// .git is dropped unless .dockerignore says otherwise
	implicitPatterns = []string{".git"}
)

type verdict int

const (
	undecided verdict = iota
	include
	exclude
)

type dockerPattern struct {
	matcher   *fileutils.PatternMatcher
	exclusion bool
}

// Filter decides which files of a project enter a build context
type Filter struct {
	patterns   []string
	docker     []dockerPattern
	exclusions bool
	git        gitignore.Matcher
}

// New reads <root>/.dockerignore and, when useGitignore, every .gitignore under root
func New(root string, useGitignore bool) (*Filter, error) {
	f := &Filter{}
	patterns, err := readDockerIgnore(filepath.Join(root, DockerIgnoreFile))
	if err != nil {
		return nil, err
	}
	f.patterns = patterns
	for _, p := range append(append([]string{}, implicitPatterns...), patterns...) {
		exclusion := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")
		if p == "" {
			continue
		}
		pm, err := fileutils.NewPatternMatcher([]string{p})
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %s in %s", p, DockerIgnoreFile)
		}
		f.docker = append(f.docker, dockerPattern{matcher: pm, exclusion: exclusion})
		f.exclusions = f.exclusions || exclusion
	}

	if useGitignore {
		gitPatterns, err := readGitIgnores(root)
		if err != nil {
			return nil, err
		}
		if len(gitPatterns) > 0 {
			f.git = gitignore.NewMatcher(gitPatterns)
		}
	}
	return f, nil
}

// ExcludePatterns returns the .dockerignore patterns as written
func (f *Filter) ExcludePatterns() []string {
	return f.patterns
}

// Ignored tells whether rel, a posix path relative to root, stays out of the context.
// A .dockerignore verdict wins, .gitignore decides the rest.
func (f *Filter) Ignored(rel string, isDir bool) bool {
	rel = utils.ToPosix(rel)
	if rel == "." || isMetadata(rel) {
		return false
	}
	if rel == DockerIgnoreFile || path.Base(rel) == GitIgnoreFile {
		return false
	}
	switch f.dockerVerdict(rel) {
	case include:
		return false
	case exclude:
		return true
	}
	return f.gitIgnored(rel, isDir)
}

// CanSkipDir tells whether nothing below an ignored dir can be re-included
func (f *Filter) CanSkipDir(rel string) bool {
	if !f.Ignored(rel, true) {
		return false
	}
	return !f.exclusions
}

func (f *Filter) dockerVerdict(rel string) verdict {
	v := undecided
	for _, p := range f.docker {
		matched, err := p.matcher.Matches(rel)
		if err != nil || !matched {
			continue
		}
		if p.exclusion {
			v = include
		} else {
			v = exclude
		}
	}
	return v
}

func (f *Filter) gitIgnored(rel string, isDir bool) bool {
	if f.git == nil {
		return false
	}
	parts := strings.Split(rel, "/")
	// git never re-includes a file whose parent dir is excluded
	for i := 1; i < len(parts); i++ {
		if f.git.Match(parts[:i], true) {
			return true
		}
	}
	return f.git.Match(parts, isDir)
}

func isMetadata(rel string) bool {
	for _, dir := range metadataDirs {
		if utils.Within(dir, rel) {
			return true
		}
	}
	return false
}

func readDockerIgnore(file string) ([]string, error) {
	fp, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	patterns, err := dockerignore.ReadAll(fp)
	return patterns, errors.Wrapf(err, "read %s", file)
}

// parents first, nested files override them
func readGitIgnores(root string) ([]gitignore.Pattern, error) {
	byDepth := map[int][]gitignore.Pattern{}
	maxDepth := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != GitIgnoreFile {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		var domain []string
		if rel = utils.ToPosix(rel); rel != "." {
			domain = strings.Split(rel, "/")
		}
		ps, err := readGitIgnore(p, domain)
		if err != nil {
			return err
		}
		byDepth[len(domain)] = append(byDepth[len(domain)], ps...)
		if len(domain) > maxDepth {
			maxDepth = len(domain)
		}
		return nil
	})
	patterns := []gitignore.Pattern{}
	for depth := 0; depth <= maxDepth; depth++ {
		patterns = append(patterns, byDepth[depth]...)
	}
	return patterns, err
}

func readGitIgnore(file string, domain []string) ([]gitignore.Pattern, error) {
	fp, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	patterns := []gitignore.Pattern{}
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns, scanner.Err()
}
