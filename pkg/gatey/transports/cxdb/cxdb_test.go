package cxdb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/strongdm/gatey-go/pkg/gatey"
)

// mockCXDBClient is a test double for the cxdb client.
type mockCXDBClient struct {
	mu             sync.Mutex
	createContexts []uint64 // baseTurnIDs passed to CreateContext
	appendRequests []*cxdbclient.AppendRequest
	nextContextID  uint64
	createErr      error
	appendErr      error
}

func (m *mockCXDBClient) CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createContexts = append(m.createContexts, baseTurnID)
	m.nextContextID++
	return &cxdbclient.ContextHead{
		ContextID:  m.nextContextID,
		HeadTurnID: 0,
		HeadDepth:  0,
	}, nil
}

func (m *mockCXDBClient) AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.appendRequests = append(m.appendRequests, req)
	return &cxdbclient.AppendResult{
		ContextID: req.ContextID,
		TurnID:    1,
		Depth:     1,
	}, nil
}

func (m *mockCXDBClient) getAppendRequests() []*cxdbclient.AppendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*cxdbclient.AppendRequest, len(m.appendRequests))
	copy(result, m.appendRequests)
	return result
}

func (m *mockCXDBClient) getCreateContextCalls() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]uint64, len(m.createContexts))
	copy(result, m.createContexts)
	return result
}

func decodeConversationItem(t *testing.T, payload []byte) cxdtypes.ConversationItem {
	t.Helper()
	var item cxdtypes.ConversationItem
	if err := cxdbclient.DecodeMsgpackInto(payload, &item); err != nil {
		t.Fatalf("DecodeMsgpackInto failed: %v", err)
	}
	return item
}

func decodeDetailsJSON(t *testing.T, content string) map[string]any {
	t.Helper()
	var details map[string]any
	if err := json.Unmarshal([]byte(content), &details); err != nil {
		t.Fatalf("details JSON unmarshal failed: %v", err)
	}
	return details
}

func TestCXDBTransport_Send_WithContextID_AppendsTurn(t *testing.T) {
	client := &mockCXDBClient{}
	tr := NewCXDBTransport(client)

	event := gatey.Event{
		ID:      "evt-123",
		Level:   gatey.LevelError,
		Message: "test error",
		Tags:    map[string]string{ContextIDTag: "12345"},
	}

	if err := tr.Send(context.Background(), event); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if calls := client.getCreateContextCalls(); len(calls) != 0 {
		t.Errorf("Should not create context when the context id tag is set, got %d create calls", len(calls))
	}

	appendReqs := client.getAppendRequests()
	if len(appendReqs) != 1 {
		t.Fatalf("Expected 1 append request, got %d", len(appendReqs))
	}

	req := appendReqs[0]
	if req.ContextID != 12345 {
		t.Errorf("AppendRequest.ContextID = %d, want 12345", req.ContextID)
	}
	if req.TypeID != cxdtypes.TypeIDConversationItem {
		t.Errorf("TypeID = %q, want %q", req.TypeID, cxdtypes.TypeIDConversationItem)
	}
	if req.TypeVersion != cxdtypes.TypeVersionConversationItem {
		t.Errorf("TypeVersion = %d, want %d", req.TypeVersion, cxdtypes.TypeVersionConversationItem)
	}
	if req.IdempotencyKey != "evt-123" {
		t.Errorf("IdempotencyKey = %q, want %q", req.IdempotencyKey, "evt-123")
	}
}

func TestCXDBTransport_Send_WithoutContextID_CreatesOrphan(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
	}{
		{"no tag", nil},
		{"malformed tag", map[string]string{ContextIDTag: "not-a-number"}},
		{"zero", map[string]string{ContextIDTag: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockCXDBClient{}
			tr := NewCXDBTransport(client)

			err := tr.Send(context.Background(), gatey.Event{ID: "evt-1", Level: "info", Message: "m", Tags: tt.tags})
			if err != nil {
				t.Fatalf("Send returned error: %v", err)
			}

			if calls := client.getCreateContextCalls(); len(calls) != 1 {
				t.Fatalf("Expected 1 create context call, got %d", len(calls))
			}
			appendReqs := client.getAppendRequests()
			if len(appendReqs) != 1 {
				t.Fatalf("Expected 1 append request, got %d", len(appendReqs))
			}
			if appendReqs[0].ContextID != 1 {
				t.Errorf("ContextID = %d, want the orphan context 1", appendReqs[0].ContextID)
			}

			item := decodeConversationItem(t, appendReqs[0].Payload)
			if item.ContextMetadata == nil {
				t.Fatalf("ContextMetadata should be set for orphan contexts")
			}
			if item.ContextMetadata.ClientTag != "gatey" {
				t.Errorf("ClientTag = %q, want gatey", item.ContextMetadata.ClientTag)
			}
			if len(item.ContextMetadata.Labels) == 0 {
				t.Errorf("Labels should be set for orphan contexts")
			}
		})
	}
}

func TestCXDBTransport_Send_PayloadFormat_CanonicalTypes(t *testing.T) {
	client := &mockCXDBClient{}
	tr := NewCXDBTransport(client)
	tr.(*cxdbTransport).now = func() time.Time { return time.Date(2025, 1, 26, 12, 0, 0, 0, time.UTC) }

	event := gatey.Event{
		ID:      "evt-456",
		Level:   gatey.LevelError,
		Message: "connection timed out",
		Exception: &gatey.Exception{
			Class:       "TimeoutError",
			Description: "connection timed out",
			Traceback:   []gatey.Frame{{Filename: "main.go", Name: "dial", Line: 42, Module: "net"}},
		},
		Tags: map[string]string{ContextIDTag: "99", "env": "prod"},
	}

	if err := tr.Send(context.Background(), event); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	appendReqs := client.getAppendRequests()
	if len(appendReqs) != 1 {
		t.Fatalf("Expected 1 append request, got %d", len(appendReqs))
	}
	item := decodeConversationItem(t, appendReqs[0].Payload)

	if item.ItemType != cxdtypes.ItemTypeSystem {
		t.Errorf("ItemType = %q, want %q", item.ItemType, cxdtypes.ItemTypeSystem)
	}
	if item.Status != cxdtypes.ItemStatusComplete {
		t.Errorf("Status = %q, want %q", item.Status, cxdtypes.ItemStatusComplete)
	}
	if item.ID != "evt-456" {
		t.Errorf("ID = %q, want evt-456", item.ID)
	}
	if want := time.Date(2025, 1, 26, 12, 0, 0, 0, time.UTC).UnixMilli(); item.Timestamp != want {
		t.Errorf("Timestamp = %d, want %d", item.Timestamp, want)
	}
	if item.System == nil {
		t.Fatalf("System message should be present")
	}
	if item.System.Kind != cxdtypes.SystemKindError {
		t.Errorf("System.Kind = %q, want %q", item.System.Kind, cxdtypes.SystemKindError)
	}
	if item.System.Title != "TimeoutError: connection timed out" {
		t.Errorf("System.Title = %q", item.System.Title)
	}

	details := decodeDetailsJSON(t, item.System.Content)
	if details["event_id"] != "evt-456" {
		t.Errorf("event_id = %v, want evt-456", details["event_id"])
	}
	if details["level"] != "error" {
		t.Errorf("level = %v, want error", details["level"])
	}
	if details["fingerprint"] != gatey.Fingerprint(event) {
		t.Errorf("fingerprint = %v, want %s", details["fingerprint"], gatey.Fingerprint(event))
	}
	exc, _ := details["exception"].(map[string]any)
	if exc == nil || exc["class"] != "TimeoutError" {
		t.Errorf("exception = %v", details["exception"])
	}
	tags, _ := details["tags"].(map[string]any)
	if tags["env"] != "prod" {
		t.Errorf("tags = %v", details["tags"])
	}

	// Non-orphan contexts should not include context metadata.
	if item.ContextMetadata != nil {
		t.Errorf("ContextMetadata should be nil for non-orphan contexts")
	}
}

func TestBuildTitle(t *testing.T) {
	long := strings.Repeat("x", 200)
	tests := []struct {
		name  string
		event gatey.Event
		want  string
	}{
		{"message", gatey.Event{Level: "info", Message: "disk low"}, "info: disk low"},
		{"exception", gatey.Event{Level: "error", Exception: &gatey.Exception{Class: "E", Description: "bad"}}, "E: bad"},
		{"no description", gatey.Event{Level: "error", Exception: &gatey.Exception{Class: "E"}}, "E"},
		{"long message", gatey.Event{Level: "info", Message: long}, "info: " + long[:80] + "..."},
		{"multibyte cut", gatey.Event{Level: "info", Message: strings.Repeat("x", 79) + "é"}, "info: " + strings.Repeat("x", 79) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTitle(tt.event); got != tt.want {
				t.Errorf("buildTitle = %q, want %q", got, tt.want)
			}
			if got := buildTitle(tt.event); len(got) > 100 {
				t.Errorf("title length %d exceeds 100", len(got))
			}
			if got := buildTitle(tt.event); !utf8.ValidString(got) {
				t.Errorf("title %q is not valid UTF-8", got)
			}
		})
	}
}

func TestCXDBTransport_WithOrphanLabels_AndClientTag(t *testing.T) {
	client := &mockCXDBClient{}
	tr := NewCXDBTransport(
		client,
		WithOrphanLabels([]string{"error", "critical"}),
		WithClientTag("gatey-e2e"),
	)

	if err := tr.Send(context.Background(), gatey.Event{ID: "evt-789", Level: "error", Message: "boom"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	item := decodeConversationItem(t, client.getAppendRequests()[0].Payload)
	if item.ContextMetadata == nil {
		t.Fatalf("ContextMetadata should be set for orphan contexts")
	}
	if item.ContextMetadata.ClientTag != "gatey-e2e" {
		t.Errorf("ClientTag = %q, want %q", item.ContextMetadata.ClientTag, "gatey-e2e")
	}
	if len(item.ContextMetadata.Labels) != 2 || item.ContextMetadata.Labels[1] != "critical" {
		t.Errorf("Labels = %v, want %v", item.ContextMetadata.Labels, []string{"error", "critical"})
	}
}

func TestCXDBTransport_Errors(t *testing.T) {
	boom := errors.New("cxdb down")

	err := NewCXDBTransport(&mockCXDBClient{createErr: boom}).Send(context.Background(), gatey.Event{Message: "m"})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "create orphan context") {
		t.Errorf("create failure = %v", err)
	}

	err = NewCXDBTransport(&mockCXDBClient{appendErr: boom}).Send(context.Background(), gatey.Event{Message: "m"})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "append turn") {
		t.Errorf("append failure = %v", err)
	}
}

func TestCXDBTransport_RetryReusesOrphanContext(t *testing.T) {
	client := &mockCXDBClient{appendErr: errors.New("cxdb down")}
	tr := NewCXDBTransport(client)
	ev := gatey.Event{ID: "evt-retry", Level: "error", Message: "boom"}

	if err := tr.Send(context.Background(), ev); err == nil {
		t.Fatalf("first Send should fail")
	}

	client.mu.Lock()
	client.appendErr = nil
	client.mu.Unlock()

	if err := tr.Send(context.Background(), ev); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}

	if calls := client.getCreateContextCalls(); len(calls) != 1 {
		t.Fatalf("Expected 1 create context call across retries, got %d", len(calls))
	}
	appendReqs := client.getAppendRequests()
	if len(appendReqs) != 1 || appendReqs[0].ContextID != 1 {
		t.Fatalf("append requests = %+v, want one into context 1", appendReqs)
	}
	if appendReqs[0].IdempotencyKey != "evt-retry" {
		t.Errorf("IdempotencyKey = %q, want evt-retry", appendReqs[0].IdempotencyKey)
	}

	// A delivered event forgets its orphan context.
	if err := tr.Send(context.Background(), gatey.Event{ID: "evt-retry", Level: "error", Message: "again"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if calls := client.getCreateContextCalls(); len(calls) != 2 {
		t.Errorf("Expected a fresh orphan context after delivery, got %d create calls", len(calls))
	}
}

func TestContextWithContextID(t *testing.T) {
	ctx := ContextWithContextID(context.Background(), 77)
	if got := gatey.TagsFromContext(ctx)[ContextIDTag]; got != "77" {
		t.Errorf("context tag = %q, want 77", got)
	}
}
