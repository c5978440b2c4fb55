package types

// VirtualizationCreateOptions use for create virtualization target
type VirtualizationCreateOptions struct {
	Name       string
	Image      string
	WorkingDir string
	Entrypoint []string
	Cmd        []string
	Env        []string
	Labels     map[string]string
}

// VirtualizationCreated use for store name and ID
type VirtualizationCreated struct {
	ID   string
	Name string
}
