package types

// ProjectType is how the dockerfile of a task was chosen
type ProjectType string

// project types
const (
	ProjectTypeStandard   ProjectType = "Standard Dockerfile"
	ProjectTypeTemplate   ProjectType = "Dockerfile.template"
	ProjectTypeArch       ProjectType = "Architecture-specific Dockerfile"
	ProjectTypeDeviceType ProjectType = "Device-type-specific Dockerfile"
	ProjectTypeExternal   ProjectType = "External image"
)

// SplitTask is one service with its slice of the build context
type SplitTask struct {
	Index       int
	ServiceName string
	Context     string
	External    bool
	Image       string // image to pull when External
	Tag         string
	Dockerfile  string // explicit dockerfile, may be empty
	Args        map[string]string
	Target      string
	Tar         []byte // build context re-rooted at Context, nil when External
}

// ResolvedTask is a SplitTask with its dockerfile chosen and rendered
type ResolvedTask struct {
	SplitTask
	ProjectType       ProjectType
	DockerfilePath    string
	DockerfileContent []byte
}

// Resolved means a dockerfile was chosen, external tasks need none
func (t *ResolvedTask) Resolved() bool {
	return t.External || t.DockerfilePath != ""
}
