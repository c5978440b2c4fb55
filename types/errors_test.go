package types

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewDetailedErr(t *testing.T) {
	err := NewDetailedErr(ErrNodeFormat, "endpoint invalid ftp://x")
	assert.True(t, errors.Is(err, ErrNodeFormat))
	assert.Contains(t, err.Error(), "ftp://x")
}

func TestBuildFailures(t *testing.T) {
	assert := assert.New(t)

	var err error = &BuildFailures{Failures: []BuildFailure{
		{ServiceName: "web", Err: errors.New("exit code 1")},
		{ServiceName: "worker", Err: ErrMissingDockerfile},
	}}
	assert.Contains(err.Error(), "Service: web")
	assert.Contains(err.Error(), "exit code 1")
	assert.Contains(err.Error(), "Missing a Dockerfile?")

	wrapped := errors.Wrap(err, "build")
	var failures *BuildFailures
	assert.True(errors.As(wrapped, &failures))
	assert.Equal([]string{"web", "worker"}, failures.Services())
	assert.Len(failures.Unwrap(), 2)
}
