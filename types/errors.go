package types

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// errors
var (
	ErrBadProjectDir      = errors.New("project path is not a directory")
	ErrComposeParse       = errors.New("failed to parse composition")
	ErrMissingDockerfile  = errors.New("Missing a Dockerfile?")
	ErrConflictingOptions = errors.New("conflicting options")
	ErrUndeclaredVolume   = errors.New("service references an undeclared volume")
	ErrUndeclaredNetwork  = errors.New("service references an undeclared network")

	ErrNotSupport       = errors.New("not support")
	ErrNodeFormat       = errors.New("bad endpoint name")
	ErrBadImageLocation = errors.New("bad image location")
	ErrBadDockerfile    = errors.New("bad dockerfile")
	ErrNoImage          = errors.New("no image")

	ErrAPIRequest         = errors.New("api request failed")
	ErrUnexpectedRedirect = errors.New("unexpected redirect")
	ErrNoApplication      = errors.New("application not found")
	ErrNoServiceImage     = errors.New("no service image for service")
	ErrPushFailed         = errors.New("failed to push image")

	ErrDeviceUnreachable = errors.New("could not communicate with device")
	ErrOldSupervisor     = errors.New("device supervisor is too old for local mode")
	ErrDeviceNotSettled  = errors.New("device state did not settle")
	ErrNoContainer       = errors.New("no container for service")

	ErrLivepushCancelled = errors.New("livepush cancelled")
	ErrRebuildCancelled  = errors.New("rebuild cancelled")

	ErrInterrupted = errors.New("interrupted")
)

// NewDetailedErr returns an error with details
func NewDetailedErr(err error, details any) error {
	return errors.Wrapf(err, "%v", details)
}

// BuildFailure is one failed service
type BuildFailure struct {
	ServiceName string
	Err         error
}

// BuildFailures aggregates every failed service of a build
type BuildFailures struct {
	Failures []BuildFailure
}

// Error .
func (b *BuildFailures) Error() string {
	lines := make([]string, 0, len(b.Failures)+1)
	lines = append(lines, "Some services failed to build:")
	for _, f := range b.Failures {
		lines = append(lines, fmt.Sprintf("\tService: %s", f.ServiceName))
		lines = append(lines, fmt.Sprintf("\t\tError: %v", f.Err))
	}
	return strings.Join(lines, "\n")
}

// Services returns the names of failed services
func (b *BuildFailures) Services() []string {
	r := make([]string, 0, len(b.Failures))
	for _, f := range b.Failures {
		r = append(r, f.ServiceName)
	}
	return r
}

// Unwrap exposes the per-service errors
func (b *BuildFailures) Unwrap() []error {
	r := make([]error, 0, len(b.Failures))
	for _, f := range b.Failures {
		r = append(r, f.Err)
	}
	return r
}
