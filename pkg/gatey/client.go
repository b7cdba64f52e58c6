// client.go provides the Client, the entry point for capturing events.

package gatey

import (
	"context"
	"errors"
	"io"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strongdm/gatey-go/pkg/gatey/api"
)

// Client captures messages and exceptions and hands them to the buffer.
// It is safe for concurrent use.
type Client struct {
	gateway   *api.Gateway
	transport Transport
	buffer    *Buffer
	logger    *zap.Logger
	metrics   *metrics
	scrubber  *Scrubber

	mapOpts MapOptions

	beforeCapture func(ctx context.Context, event *Event)
	afterCapture  func(ctx context.Context, event Event, ok bool, err error)

	tagsMu      sync.RWMutex
	defaultTags map[string]string

	processInfo bool

	uninstallHook func()
	closeOnce     sync.Once
	closeErr      error
}

// NewClient creates a Client.
//
// With the network transport the project id and a secret are required, and
// unless disabled with WithAuthCheckOnInit(false) the credentials are
// verified against the API; a rejection is returned as *api.AuthError.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger.Named("gatey")
	auth := cfg.auth
	gateway := api.NewGateway(&auth, append(cfg.gatewayOpts, api.WithLogger(logger))...)

	transport, err := BuildTransport(cfg.transport, gateway)
	if err != nil {
		return nil, err
	}

	m := newMetrics(cfg.registry)
	buffer, err := NewBuffer(transport,
		WithBuffering(cfg.buffering),
		WithMaxCapacity(cfg.capacity),
		WithFlushInterval(cfg.flushInterval),
		WithExitSignals(cfg.exitSignals...),
		WithBufferLogger(logger),
		withBufferMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	tags := defaultTags(cfg.includeRuntime, cfg.includePlatform, cfg.includeSDK)
	maps.Copy(tags, cfg.defaultTags)

	c := &Client{
		gateway:   gateway,
		transport: transport,
		buffer:    buffer,
		logger:    logger,
		metrics:   m,
		scrubber:  cfg.scrubber,
		mapOpts: MapOptions{
			SkipVars:       !cfg.captureVars,
			IncludeContext: cfg.captureContext,
			Window:         cfg.contextWindow,
			Mode:           cfg.contextMode,
		},
		beforeCapture: cfg.beforeCapture,
		afterCapture:  cfg.afterCapture,
		defaultTags:   tags,
		processInfo:   cfg.includeProcess,
	}

	if cfg.checkAuth && cfg.transport.IsNetwork() {
		if err := gateway.HardCheckAuth(ctx); err != nil {
			_ = buffer.Close()
			return nil, err
		}
	}

	if cfg.globalHook {
		c.uninstallHook = InstallGlobalHook(c.reportUncaught, cfg.globalHookSkipInternal)
	}

	return c, nil
}

// CaptureEvent merges tags into event, lower-cases level, and pushes the
// event to the buffer.
//
// Tags are merged in this order, later sources winning: default tags
// (followed by process tags when enabled), tags carried by ctx, the event's
// own tags, then WithTags. The boolean reports
// whether the event was accepted; without buffering a delivery failure is
// returned as an error.
func (c *Client) CaptureEvent(ctx context.Context, event Event, level string, opts ...CaptureOption) (bool, error) {
	cfg := captureConfig{defaultTags: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	ev := event.Clone()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Level = strings.ToLower(level)
	ev.Tags = c.mergeTags(ctx, event.Tags, cfg)

	if err := ev.Validate(); err != nil {
		return false, err
	}

	if c.scrubber != nil {
		c.scrubber.ScrubEvent(&ev)
	}
	if c.beforeCapture != nil {
		c.beforeCapture(ctx, &ev)
	}

	c.metrics.observeCaptured(ev.Level)
	ok, err := c.buffer.Push(ctx, ev)

	if c.afterCapture != nil {
		c.afterCapture(ctx, ev, ok, err)
	}
	return ok, err
}

// CaptureMessage captures a message event (default level "info").
func (c *Client) CaptureMessage(ctx context.Context, message string, opts ...CaptureOption) (bool, error) {
	level := levelOf(LevelInfo, opts)
	return c.CaptureEvent(ctx, Event{Message: message}, level, opts...)
}

// CaptureException captures err as an exception event (default level
// "error"). The event message is the error description.
func (c *Client) CaptureException(ctx context.Context, err error, opts ...CaptureOption) (bool, error) {
	if err == nil {
		return false, ErrEmptyEvent
	}
	exc := exceptionFromError(err, c.mapOpts, 1)
	return c.captureException(ctx, exc, opts...)
}

func (c *Client) captureException(ctx context.Context, exc Exception, opts ...CaptureOption) (bool, error) {
	level := levelOf(LevelError, opts)
	event := Event{Exception: &exc, Message: exc.Description}
	return c.CaptureEvent(ctx, event, level, opts...)
}

// UpdateDefaultTag sets a default tag for all future events.
func (c *Client) UpdateDefaultTag(name, value string) error {
	if name == "" {
		return &ConfigError{Field: "tag", Reason: "tag name must not be empty"}
	}
	c.tagsMu.Lock()
	defer c.tagsMu.Unlock()
	c.defaultTags[name] = value
	return nil
}

// DefaultTags returns a copy of the default tags.
func (c *Client) DefaultTags() map[string]string {
	c.tagsMu.RLock()
	defer c.tagsMu.RUnlock()
	return maps.Clone(c.defaultTags)
}

// Flush sends all buffered events and reports whether all were delivered.
func (c *Client) Flush(ctx context.Context) bool {
	return c.buffer.SendAll(ctx)
}

// DropBuffered discards buffered events without sending them.
func (c *Client) DropBuffered() {
	c.buffer.Clear()
}

// Gateway returns the API gateway used by the client.
func (c *Client) Gateway() *api.Gateway {
	return c.gateway
}

// Buffer returns the event buffer.
func (c *Client) Buffer() *Buffer {
	return c.buffer
}

// Close uninstalls the global hook, stops the background flusher, and sends
// the remaining buffered events. It returns ErrUndelivered when some could
// not be sent. A transport implementing io.Closer is closed last.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.uninstallHook != nil {
			c.uninstallHook()
		}
		errs := []error{c.buffer.Close()}
		if closer, ok := c.transport.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// reportUncaught is the client's global hook. Errors without a stack are
// attributed to the caller of NotifyUncaught.
func (c *Client) reportUncaught(err error) error {
	exc := exceptionFromError(err, c.mapOpts, 3)
	_, captureErr := c.captureException(context.Background(), exc)
	if captureErr != nil {
		c.logger.Warn("failed to report uncaught error", zap.Error(captureErr))
	}
	return captureErr
}

func (c *Client) mergeTags(ctx context.Context, eventTags map[string]string, cfg captureConfig) map[string]string {
	tags := make(map[string]string)
	if cfg.defaultTags {
		c.tagsMu.RLock()
		maps.Copy(tags, c.defaultTags)
		c.tagsMu.RUnlock()
		if c.processInfo {
			maps.Copy(tags, processTags(processStart))
		}
	}
	maps.Copy(tags, TagsFromContext(ctx))
	maps.Copy(tags, eventTags)
	maps.Copy(tags, cfg.tags)
	return tags
}

func levelOf(def string, opts []CaptureOption) string {
	cfg := captureConfig{level: def}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.level
}

// captureCaught reports an error caught by Catch or the global hook and
// logs capture failures instead of returning them, so they never replace
// the original error.
func (c *Client) captureCaught(ctx context.Context, err error, skip int) {
	exc := exceptionFromError(err, c.mapOpts, skip+1)
	if _, captureErr := c.captureException(ctx, exc); captureErr != nil && !errors.Is(captureErr, ErrEmptyEvent) {
		c.logger.Warn("failed to capture caught error", zap.Error(captureErr))
	}
}
