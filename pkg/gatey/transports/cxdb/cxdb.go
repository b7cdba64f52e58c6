// Package cxdb provides a transport that persists events to cxdb as SystemMessage items.
package cxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/strongdm/gatey-go/pkg/gatey"
)

// ContextIDTag is the event tag naming the cxdb context an event belongs to.
// Events without it are written to a fresh orphan context.
const ContextIDTag = "cxdb.context_id"

// ContextWithContextID returns a context whose captured events are appended
// to the cxdb context id.
func ContextWithContextID(ctx context.Context, id uint64) context.Context {
	return gatey.ContextWithTags(ctx, map[string]string{ContextIDTag: strconv.FormatUint(id, 10)})
}

// CXDBClient is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type CXDBClient interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// Option configures the cxdb transport.
type Option func(*config)

type config struct {
	orphanLabels []string
	clientTag    string
	now          func() time.Time
}

// WithOrphanLabels sets labels for orphan event contexts.
func WithOrphanLabels(labels []string) Option {
	return func(c *config) {
		c.orphanLabels = labels
	}
}

// WithClientTag sets the client tag for orphan contexts.
func WithClientTag(tag string) Option {
	return func(c *config) {
		c.clientTag = tag
	}
}

// maxPendingOrphans bounds the orphan contexts remembered for events whose
// append has not succeeded yet.
const maxPendingOrphans = 1024

// cxdbTransport writes events to cxdb as SystemMessage items.
type cxdbTransport struct {
	client       CXDBClient
	orphanLabels []string
	clientTag    string
	now          func() time.Time

	// orphans maps event IDs to the orphan context created for them, so a
	// retried send appends to the same context.
	mu      sync.Mutex
	orphans map[string]uint64
}

// NewCXDBTransport creates a transport that writes to cxdb.
func NewCXDBTransport(client CXDBClient, opts ...Option) gatey.Transport {
	cfg := &config{
		orphanLabels: []string{"error", "unlinked"},
		clientTag:    "gatey",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &cxdbTransport{
		client:       client,
		orphanLabels: cfg.orphanLabels,
		clientTag:    cfg.clientTag,
		now:          cfg.now,
		orphans:      make(map[string]uint64),
	}
}

// Send persists an event to cxdb.
func (t *cxdbTransport) Send(ctx context.Context, event gatey.Event) error {
	contextID, ok := contextIDOf(event)
	isOrphan := !ok

	if isOrphan {
		id, err := t.orphanContext(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("create orphan context: %w", err)
		}
		contextID = id
	}

	item := t.buildConversationItem(event, isOrphan)

	payload, err := cxdbclient.EncodeMsgpack(item)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	// Retries reuse the orphan context, so the event id deduplicates them.
	req := &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: event.ID,
	}

	if _, err := t.client.AppendTurn(ctx, req); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if isOrphan {
		t.forgetOrphan(event.ID)
	}
	return nil
}

// orphanContext returns the orphan context of a previous failed attempt for
// eventID, or creates one.
func (t *cxdbTransport) orphanContext(ctx context.Context, eventID string) (uint64, error) {
	if eventID != "" {
		t.mu.Lock()
		id, ok := t.orphans[eventID]
		t.mu.Unlock()
		if ok {
			return id, nil
		}
	}

	head, err := t.client.CreateContext(ctx, 0)
	if err != nil {
		return 0, err
	}
	if eventID == "" {
		return head.ContextID, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.orphans) >= maxPendingOrphans {
		for k := range t.orphans {
			delete(t.orphans, k)
			break
		}
	}
	t.orphans[eventID] = head.ContextID
	return head.ContextID, nil
}

func (t *cxdbTransport) forgetOrphan(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.orphans, eventID)
}

// contextIDOf reads the context id tag. A missing or malformed tag yields an
// orphan context.
func contextIDOf(event gatey.Event) (uint64, bool) {
	raw, ok := event.Tags[ContextIDTag]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// buildConversationItem creates a canonical ConversationItem from an event.
func (t *cxdbTransport) buildConversationItem(event gatey.Event, isOrphan bool) *cxdtypes.ConversationItem {
	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: t.now().UnixMilli(),
		ID:        event.ID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   buildTitle(event),
			Content: buildEventDetails(event),
		},
	}

	// cxdb expects context metadata on the first turn.
	if isOrphan {
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    t.orphanLabels,
			ClientTag: t.clientTag,
		}
	}
	return item
}

// buildTitle returns "Class: description" for exceptions and
// "level: message" otherwise, truncated to 100 chars.
func buildTitle(event gatey.Event) string {
	prefix, text := event.Level, event.Message
	if exc := event.Exception; exc != nil {
		prefix, text = exc.Class, exc.Description
	}

	title := prefix
	if text != "" {
		const maxMsgLen = 80
		if len(text) > maxMsgLen {
			text = truncate(text, maxMsgLen) + "..."
		}
		title = prefix + ": " + text
	}

	if len(title) > 100 {
		title = truncate(title, 97) + "..."
	}
	return title
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// buildEventDetails encodes the full event as JSON for SystemMessage.Content.
func buildEventDetails(event gatey.Event) string {
	details := map[string]any{
		"event_id":    event.ID,
		"level":       event.Level,
		"fingerprint": gatey.Fingerprint(event),
		"tags":        event.Tags,
	}

	if event.Message != "" {
		details["message"] = event.Message
	}
	if event.Exception != nil {
		details["exception"] = event.Exception
	}

	jsonBytes, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode details: %s"}`, err)
	}
	return string(jsonBytes)
}
