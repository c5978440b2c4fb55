package types

import (
	"time"
)

// Config holds barge config
type Config struct {
	LogLevel          string        `yaml:"log_level" required:"true" default:"INFO"`
	SentryDSN         string        `yaml:"sentry_dsn"`
	GlobalTimeout     time.Duration `yaml:"global_timeout" required:"true" default:"300s"` // timeout for single engine calls like tag, inspect and remove
	ConnectionTimeout time.Duration `yaml:"connection_timeout" default:"10s"`              // timeout for connecting engines
	MaxConcurrency    int           `yaml:"max_concurrency" default:"20"`                  // services built in the same time

	Docker    DockerConfig    `yaml:"docker"`
	API       APIConfig       `yaml:"api"`
	Device    DeviceConfig    `yaml:"device"`
	Livepush  LivepushConfig  `yaml:"livepush"`
	Emulation EmulationConfig `yaml:"emulation"`
}

// DockerConfig holds docker engine config
type DockerConfig struct {
	APIVersion  string                `yaml:"version" required:"true" default:"1.40"`                // docker API version
	Endpoint    string                `yaml:"endpoint" default:"unix:///var/run/docker.sock"`        // default engine endpoint
	CertPath    string                `yaml:"cert_path"`                                             // docker cert files path
	CA          string                `yaml:"ca"`                                                    // tls ca content
	Cert        string                `yaml:"cert"`                                                  // tls cert content
	Key         string                `yaml:"key"`                                                   // tls key content
	AuthConfigs map[string]AuthConfig `yaml:"auths"`                                                 // registry credentials
	PullParent  bool                  `yaml:"pull" default:"false"`                                  // always pull parent images
	NoCache     bool                  `yaml:"nocache" default:"false"`                               // build without cache
	BuildArgs   map[string]string     `yaml:"build_args"`                                            // extra build args for every service
	ConvertEOL  *bool                 `yaml:"convert_eol"`                                           // convert CRLF to LF, default on windows hosts
	GitIgnore   bool                  `yaml:"gitignore" default:"true"`                              // honour .gitignore files in packaging
	LabelPrefix string                `yaml:"label_prefix" required:"true" default:"io.barge.local"` // label namespace for built images
}

// AuthConfig contains authorization information for connecting to a Registry
type AuthConfig struct {
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// APIConfig holds cloud api config
type APIConfig struct {
	Endpoint       string        `yaml:"endpoint" default:"https://api.balena-cloud.com"`
	Builder        string        `yaml:"builder" default:"https://builder.balena-cloud.com"`
	Token          string        `yaml:"token"`
	Registry       string        `yaml:"registry" default:"registry2.balena-cloud.com"`
	Retry          RetryConfig   `yaml:"retry"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"60s"`
}

// RetryConfig is the backoff policy for cloud api calls
type RetryConfig struct {
	MinDelay    time.Duration `yaml:"min_delay" default:"1s"`
	MaxDelay    time.Duration `yaml:"max_delay" default:"60s"`
	MaxAttempts int           `yaml:"max_attempts" default:"7"`
}

// DeviceConfig holds local device config
type DeviceConfig struct {
	SupervisorPort int           `yaml:"supervisor_port" default:"48484"`
	DockerPort     int           `yaml:"docker_port" default:"2375"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
	PollInterval   time.Duration `yaml:"poll_interval" default:"1s"` // settle poll interval
	MinSupervisor  string        `yaml:"min_supervisor" default:"7.21.4"`
}

// LivepushConfig holds livepush config
type LivepushConfig struct {
	Debounce time.Duration `yaml:"debounce" default:"1s"`
}

// EmulationConfig holds qemu config
type EmulationConfig struct {
	QemuVersion string `yaml:"qemu_version" default:"v7.0.0+balena1"`
	URL         string `yaml:"url" default:"https://github.com/balena-io/qemu/releases/download/%s/qemu-%s-%s.tar.gz"`
	CacheDir    string `yaml:"cache_dir" default:"/tmp/barge/bin"`
}
