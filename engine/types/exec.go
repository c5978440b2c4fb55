package types

// ExecConfig is a small subset of the Config struct that holds the configuration
// for the exec feature of docker.
type ExecConfig struct {
	User       string   // User that will run the command
	Env        []string // Environment variables
	WorkingDir string   // Working directory
	Cmd        []string // Execution commands and args
}
