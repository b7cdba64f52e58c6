// Package config loads client settings from GATEY_* environment variables
// and dotenv files.
package config

import (
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/strongdm/gatey-go/pkg/gatey"
)

// Transport names accepted by GATEY_TRANSPORT.
const (
	TransportHTTP  = "http"
	TransportNoop  = "noop"
	TransportPrint = "print"
)

// Config holds the client configuration loaded from environment variables.
// Defaults match the NewClient defaults.
type Config struct {
	Transport string `env:"GATEY_TRANSPORT" envDefault:"http"`

	BufferEvents      bool          `env:"GATEY_BUFFER_EVENTS" envDefault:"false"`
	BufferMaxCapacity int           `env:"GATEY_BUFFER_MAX_CAPACITY" envDefault:"3"`
	BufferFlushEvery  time.Duration `env:"GATEY_BUFFER_FLUSH_EVERY" envDefault:"5s"`

	HandleGlobalExceptions bool `env:"GATEY_HANDLE_GLOBAL_EXCEPTIONS" envDefault:"false"`
	GlobalSkipInternal     bool `env:"GATEY_GLOBAL_HANDLER_SKIP_INTERNAL_EXCEPTIONS" envDefault:"true"`

	CaptureVars        bool `env:"GATEY_CAPTURE_VARS" envDefault:"false"`
	CaptureCodeContext bool `env:"GATEY_CAPTURE_CODE_CONTEXT" envDefault:"true"`

	IncludeRuntimeInfo  bool `env:"GATEY_INCLUDE_RUNTIME_INFO" envDefault:"true"`
	IncludePlatformInfo bool `env:"GATEY_INCLUDE_PLATFORM_INFO" envDefault:"true"`
	IncludeSDKInfo      bool `env:"GATEY_INCLUDE_SDK_INFO" envDefault:"true"`
	IncludeProcessInfo  bool `env:"GATEY_INCLUDE_PROCESS_INFO" envDefault:"false"`

	// Credentials
	AccessToken   string `env:"GATEY_ACCESS_TOKEN"`
	ProjectID     string `env:"GATEY_PROJECT_ID"`
	ServerSecret  string `env:"GATEY_SERVER_SECRET"`
	ClientSecret  string `env:"GATEY_CLIENT_SECRET"`
	CheckAuthInit bool   `env:"GATEY_CHECK_AUTH_ON_INIT" envDefault:"true"`

	// DefaultTags is a comma separated list of key:value pairs.
	DefaultTags map[string]string `env:"GATEY_DEFAULT_TAGS" envSeparator:"," envKeyValSeparator:":"`

	// API endpoint; empty values keep the built-in defaults.
	APIURL     string        `env:"GATEY_API_URL"`
	APIVersion string        `env:"GATEY_API_VERSION"`
	APITimeout time.Duration `env:"GATEY_API_TIMEOUT" envDefault:"5s"`
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses a dotenv file. Variables set in the process environment
// take precedence over the file.
func LoadFile(path string) (*Config, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	maps.Copy(vars, environ())

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportNoop, TransportPrint:
	default:
		return &gatey.ConfigError{Field: "GATEY_TRANSPORT", Reason: fmt.Sprintf("unknown transport %q", c.Transport)}
	}
	if c.BufferMaxCapacity < 0 {
		return &gatey.ConfigError{Field: "GATEY_BUFFER_MAX_CAPACITY", Reason: "must not be negative"}
	}
	if c.BufferFlushEvery < 0 {
		return &gatey.ConfigError{Field: "GATEY_BUFFER_FLUSH_EVERY", Reason: "must not be negative"}
	}
	return nil
}

// Options converts the configuration into client options.
func (c *Config) Options() ([]gatey.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := []gatey.Option{
		gatey.WithTransport(c.transportSpec()),
		gatey.WithEventBuffering(c.BufferEvents),
		gatey.WithBufferCapacity(c.BufferMaxCapacity),
		gatey.WithBufferFlushInterval(c.BufferFlushEvery),
		gatey.WithGlobalHook(c.HandleGlobalExceptions),
		gatey.WithGlobalHookSkipInternal(c.GlobalSkipInternal),
		gatey.WithCaptureVars(c.CaptureVars),
		gatey.WithCaptureCodeContext(c.CaptureCodeContext),
		gatey.WithRuntimeInfo(c.IncludeRuntimeInfo),
		gatey.WithPlatformInfo(c.IncludePlatformInfo),
		gatey.WithSDKInfo(c.IncludeSDKInfo),
		gatey.WithProcessInfo(c.IncludeProcessInfo),
		gatey.WithAccessToken(c.AccessToken),
		gatey.WithProjectID(c.ProjectID),
		gatey.WithServerSecret(c.ServerSecret),
		gatey.WithClientSecret(c.ClientSecret),
		gatey.WithAuthCheckOnInit(c.CheckAuthInit),
	}
	if len(c.DefaultTags) > 0 {
		opts = append(opts, gatey.WithDefaultTags(c.DefaultTags))
	}
	if c.APIURL != "" {
		opts = append(opts, gatey.WithAPIURL(c.APIURL))
	}
	if c.APIVersion != "" {
		opts = append(opts, gatey.WithAPIVersion(c.APIVersion))
	}
	if c.APITimeout > 0 {
		opts = append(opts, gatey.WithAPITimeout(c.APITimeout))
	}
	return opts, nil
}

func (c *Config) transportSpec() gatey.TransportSpec {
	switch c.Transport {
	case TransportNoop:
		return gatey.UseNoop()
	case TransportPrint:
		return gatey.UsePrint()
	default:
		return gatey.UseHTTP()
	}
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
