// options.go defines the functional options accepted by NewClient.

package gatey

import (
	"context"
	"maps"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/strongdm/gatey-go/pkg/gatey/api"
)

// DefaultBufferCapacity is the client's default buffer capacity.
const DefaultBufferCapacity = 3

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	transport TransportSpec

	buffering     bool
	capacity      int
	flushInterval time.Duration
	exitSignals   []os.Signal

	globalHook             bool
	globalHookSkipInternal bool

	captureVars    bool
	captureContext bool
	contextMode    ContextMode
	contextWindow  int

	includeRuntime  bool
	includePlatform bool
	includeSDK      bool
	includeProcess  bool
	defaultTags     map[string]string

	auth        api.Auth
	checkAuth   bool
	gatewayOpts []api.Option

	logger   *zap.Logger
	registry prometheus.Registerer
	scrubber *Scrubber

	beforeCapture func(ctx context.Context, event *Event)
	afterCapture  func(ctx context.Context, event Event, ok bool, err error)
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		transport:              UseHTTP(),
		capacity:               DefaultBufferCapacity,
		flushInterval:          DefaultFlushInterval,
		globalHookSkipInternal: true,
		captureContext:         true,
		contextMode:            ContextTailOnly,
		contextWindow:          DefaultContextWindow,
		includeRuntime:         true,
		includePlatform:        true,
		includeSDK:             true,
		checkAuth:              true,
		logger:                 zap.NewNop(),
	}
}

// WithTransport selects the transport (default: network transport).
func WithTransport(spec TransportSpec) Option {
	return func(c *clientConfig) {
		c.transport = spec
	}
}

// WithEventBuffering enables buffering of events for bulk sending (default false).
func WithEventBuffering(enabled bool) Option {
	return func(c *clientConfig) {
		c.buffering = enabled
	}
}

// WithBufferCapacity sets the number of buffered events that triggers a
// flush (default 3). Zero means unbounded.
func WithBufferCapacity(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.capacity = n
		}
	}
}

// WithBufferFlushInterval sets the background flush interval (default 5s).
// Zero disables the background flusher.
func WithBufferFlushInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		if d >= 0 {
			c.flushInterval = d
		}
	}
}

// WithExitFlushSignals flushes buffered events when the process receives
// one of the signals.
func WithExitFlushSignals(sigs ...os.Signal) Option {
	return func(c *clientConfig) {
		c.exitSignals = append(c.exitSignals, sigs...)
	}
}

// WithGlobalHook installs the client as the process-wide hook used by
// RecoverGlobal and NotifyUncaught (default false).
func WithGlobalHook(enabled bool) Option {
	return func(c *clientConfig) {
		c.globalHook = enabled
	}
}

// WithGlobalHookSkipInternal controls whether SDK errors raised while the
// global hook reports a crash are swallowed (default true).
func WithGlobalHookSkipInternal(skip bool) Option {
	return func(c *clientConfig) {
		c.globalHookSkipInternal = skip
	}
}

// WithCaptureVars enables variable snapshots for exceptions (default false).
func WithCaptureVars(enabled bool) Option {
	return func(c *clientConfig) {
		c.captureVars = enabled
	}
}

// WithCaptureCodeContext enables source context for exceptions (default true).
func WithCaptureCodeContext(enabled bool) Option {
	return func(c *clientConfig) {
		c.captureContext = enabled
	}
}

// WithContextMode selects which frames receive source context (default tail only).
func WithContextMode(mode ContextMode) Option {
	return func(c *clientConfig) {
		c.contextMode = mode
	}
}

// WithContextWindow sets the number of source lines around a frame (default 5).
func WithContextWindow(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.contextWindow = n
		}
	}
}

// WithRuntimeInfo includes Go runtime tags (default true).
func WithRuntimeInfo(enabled bool) Option {
	return func(c *clientConfig) {
		c.includeRuntime = enabled
	}
}

// WithPlatformInfo includes host platform tags (default true).
func WithPlatformInfo(enabled bool) Option {
	return func(c *clientConfig) {
		c.includePlatform = enabled
	}
}

// WithSDKInfo includes SDK name and version tags (default true).
func WithSDKInfo(enabled bool) Option {
	return func(c *clientConfig) {
		c.includeSDK = enabled
	}
}

// WithProcessInfo adds process state tags (heap bytes, goroutine count,
// uptime) captured at the moment of each event (default false). Reading them
// briefly stops the world, so leave this off on hot capture paths.
func WithProcessInfo(enabled bool) Option {
	return func(c *clientConfig) {
		c.includeProcess = enabled
	}
}

// WithDefaultTags adds default tags. They override the built-in tags.
func WithDefaultTags(tags map[string]string) Option {
	return func(c *clientConfig) {
		if c.defaultTags == nil {
			c.defaultTags = make(map[string]string, len(tags))
		}
		maps.Copy(c.defaultTags, tags)
	}
}

// WithAccessToken sets the user access token for user-authorized API calls.
func WithAccessToken(token string) Option {
	return func(c *clientConfig) {
		c.auth.AccessToken = token
	}
}

// WithProjectID sets the project events are captured for.
func WithProjectID(id string) Option {
	return func(c *clientConfig) {
		c.auth.ProjectID = id
	}
}

// WithServerSecret sets the project server secret.
func WithServerSecret(secret string) Option {
	return func(c *clientConfig) {
		c.auth.ServerSecret = secret
	}
}

// WithClientSecret sets the project client secret.
func WithClientSecret(secret string) Option {
	return func(c *clientConfig) {
		c.auth.ClientSecret = secret
	}
}

// WithAuthCheckOnInit verifies credentials in NewClient (default true).
// The check only runs with the network transport.
func WithAuthCheckOnInit(enabled bool) Option {
	return func(c *clientConfig) {
		c.checkAuth = enabled
	}
}

// WithAPIURL sets the API endpoint, e.g. for self-hosted servers.
func WithAPIURL(u string) Option {
	return func(c *clientConfig) {
		c.gatewayOpts = append(c.gatewayOpts, api.WithBaseURL(u))
	}
}

// WithAPIVersion sets the protocol version expected from the API.
func WithAPIVersion(v string) Option {
	return func(c *clientConfig) {
		c.gatewayOpts = append(c.gatewayOpts, api.WithExpectedVersion(v))
	}
}

// WithAPITimeout sets the per-request API timeout (default 5s).
func WithAPITimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.gatewayOpts = append(c.gatewayOpts, api.WithTimeout(d))
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.gatewayOpts = append(c.gatewayOpts, api.WithHTTPClient(hc))
	}
}

// WithLogger sets the logger for SDK diagnostics (default: no logging).
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics registers SDK metrics on registerer. A registerer can serve
// one client only.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registry = registerer
	}
}

// WithScrubber scrubs events with a custom configuration before they are queued.
func WithScrubber(cfg ScrubberConfig) Option {
	return func(c *clientConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() Option {
	return func(c *clientConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithBeforeCapture sets a hook called with every event before it is queued.
// The hook may modify the event.
func WithBeforeCapture(fn func(ctx context.Context, event *Event)) Option {
	return func(c *clientConfig) {
		c.beforeCapture = fn
	}
}

// WithAfterCapture sets a hook called with the outcome of every capture.
func WithAfterCapture(fn func(ctx context.Context, event Event, ok bool, err error)) Option {
	return func(c *clientConfig) {
		c.afterCapture = fn
	}
}

// CaptureOption configures a single capture call.
type CaptureOption func(*captureConfig)

type captureConfig struct {
	level       string
	tags        map[string]string
	defaultTags bool
}

// WithTags adds tags to the captured event. They win over default and context tags.
func WithTags(tags map[string]string) CaptureOption {
	return func(c *captureConfig) {
		if c.tags == nil {
			c.tags = make(map[string]string, len(tags))
		}
		maps.Copy(c.tags, tags)
	}
}

// WithoutDefaultTags omits the client's default tags from the event.
func WithoutDefaultTags() CaptureOption {
	return func(c *captureConfig) {
		c.defaultTags = false
	}
}

// WithLevel sets the level for CaptureMessage and CaptureException.
func WithLevel(level string) CaptureOption {
	return func(c *captureConfig) {
		c.level = level
	}
}
