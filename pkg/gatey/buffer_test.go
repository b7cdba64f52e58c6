package gatey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, tr Transport, opts ...BufferOption) *Buffer {
	t.Helper()
	b, err := NewBuffer(tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func msg(s string) Event {
	return Event{ID: s, Message: s, Level: LevelInfo, Tags: map[string]string{}}
}

func TestBuffer_UnbufferedSendsImmediately(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec)

	ok, err := b.Push(context.Background(), msg("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, rec.messages())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_UnbufferedFailsFast(t *testing.T) {
	boom := errors.New("boom")
	rec := &recordingTransport{fail: func(Event) error { return boom }}
	b := newTestBuffer(t, rec)

	ok, err := b.Push(context.Background(), msg("a"))
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.Len(), "failed events are not queued without buffering")
}

func TestBuffer_CapacityTriggersFlush(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec, WithBuffering(true), WithMaxCapacity(3), WithFlushInterval(0))
	ctx := context.Background()

	for _, m := range []string{"a", "b"} {
		ok, err := b.Push(ctx, msg(m))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Empty(t, rec.getEvents())
	assert.Equal(t, 2, b.Len())
	assert.False(t, b.IsFull())

	ok, err := b.Push(ctx, msg("c"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, rec.messages())
	assert.True(t, b.IsEmpty())
}

func TestBuffer_UnboundedNeverFull(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))

	for i := range 50 {
		_, err := b.Push(context.Background(), msg(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	assert.False(t, b.IsFull())
	assert.Equal(t, 50, b.Len())
	assert.Empty(t, rec.getEvents())
}

func TestBuffer_FailedEntriesRequeuedVerbatim(t *testing.T) {
	var mu sync.Mutex
	failing := map[string]bool{"b": true}
	rec := &recordingTransport{fail: func(ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		if failing[ev.Message] {
			return errors.New("unavailable")
		}
		return nil
	}}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))
	ctx := context.Background()

	in := []Event{msg("a"), msg("b"), msg("c")}
	in[1].Tags["k"] = "v"
	for _, ev := range in {
		_, err := b.Push(ctx, ev)
		require.NoError(t, err)
	}

	assert.False(t, b.SendAll(ctx))
	assert.Equal(t, []string{"a", "c"}, rec.messages())
	if diff := cmp.Diff([]Event{in[1]}, b.Pending()); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	mu.Lock()
	failing["b"] = false
	mu.Unlock()

	assert.True(t, b.SendAll(ctx))
	assert.Equal(t, []string{"a", "c", "b"}, rec.messages())
	assert.Equal(t, 4, rec.getAttempts())
}

func TestBuffer_TransportPanicIsAFailedSend(t *testing.T) {
	var mu sync.Mutex
	broken := true
	rec := &recordingTransport{fail: func(ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		if broken && ev.Message == "b" {
			panic("transport bug")
		}
		return nil
	}}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))
	ctx := context.Background()

	for _, m := range []string{"a", "b", "c"} {
		_, err := b.Push(ctx, msg(m))
		require.NoError(t, err)
	}

	var flushed bool
	require.NotPanics(t, func() { flushed = b.SendAll(ctx) })
	assert.False(t, flushed)
	assert.Equal(t, []string{"a", "c"}, rec.messages(), "entries after the panicking one are still sent")
	assert.Equal(t, 3, rec.getAttempts())
	if diff := cmp.Diff([]Event{msg("b")}, b.Pending()); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	mu.Lock()
	broken = false
	mu.Unlock()

	assert.True(t, b.SendAll(ctx))
	assert.Equal(t, []string{"a", "c", "b"}, rec.messages())
}

func TestBuffer_UnbufferedTransportPanicFailsFast(t *testing.T) {
	b := newTestBuffer(t, TransportFunc(func(ctx context.Context, event Event) error {
		panic("transport bug")
	}))

	var (
		ok  bool
		err error
	)
	require.NotPanics(t, func() { ok, err = b.Push(context.Background(), msg("a")) })
	assert.False(t, ok)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "transport bug", pe.Value)
}

func TestBuffer_PushDuringFlushKeepsOrder(t *testing.T) {
	var b *Buffer
	ctx := context.Background()
	var once sync.Once
	rec := &recordingTransport{fail: func(ev Event) error {
		if ev.Message == "A" {
			once.Do(func() {
				_, _ = b.Push(ctx, msg("B"))
			})
			return errors.New("A fails")
		}
		return nil
	}}
	b = newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))

	_, err := b.Push(ctx, msg("A"))
	require.NoError(t, err)
	assert.False(t, b.SendAll(ctx))

	var got []string
	for _, ev := range b.Pending() {
		got = append(got, ev.Message)
	}
	assert.Equal(t, []string{"B", "A"}, got)
}

func TestBuffer_Clear(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))

	_, _ = b.Push(context.Background(), msg("a"))
	_, _ = b.Push(context.Background(), msg("b"))
	b.Clear()
	assert.True(t, b.IsEmpty())
	b.Clear()
	assert.True(t, b.IsEmpty())
	assert.True(t, b.SendAll(context.Background()))
	assert.Empty(t, rec.getEvents())
}

func TestBuffer_EmptyFlushDoesNotCallTransport(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(0))

	assert.True(t, b.SendAll(context.Background()))
	assert.Equal(t, 0, rec.getAttempts())
}

func TestBuffer_TimerFlush(t *testing.T) {
	rec := &recordingTransport{}
	b := newTestBuffer(t, rec, WithBuffering(true), WithFlushInterval(10*time.Millisecond))

	_, err := b.Push(context.Background(), msg("tick"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.getEvents()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, b.IsEmpty())
}

func TestBuffer_CloseFlushes(t *testing.T) {
	rec := &recordingTransport{}
	b, err := NewBuffer(rec, WithBuffering(true), WithFlushInterval(time.Hour))
	require.NoError(t, err)

	_, _ = b.Push(context.Background(), msg("a"))
	_, _ = b.Push(context.Background(), msg("b"))

	require.NoError(t, b.Close())
	assert.Equal(t, []string{"a", "b"}, rec.messages())
	require.NoError(t, b.Close())
}

func TestBuffer_CloseReportsUndelivered(t *testing.T) {
	rec := &recordingTransport{fail: func(Event) error { return errors.New("down") }}
	b, err := NewBuffer(rec, WithBuffering(true), WithFlushInterval(0))
	require.NoError(t, err)

	_, _ = b.Push(context.Background(), msg("a"))
	_, _ = b.Push(context.Background(), msg("b"))

	err = b.Close()
	require.ErrorIs(t, err, ErrUndelivered)
	assert.Contains(t, err.Error(), "2 events")

	assert.Equal(t, err, b.Close(), "close is idempotent")
	assert.Equal(t, 2, rec.getAttempts())
}

func TestBuffer_PushAfterCloseSendsImmediately(t *testing.T) {
	rec := &recordingTransport{}
	b, err := NewBuffer(rec, WithBuffering(true), WithFlushInterval(0))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	ok, err := b.Push(context.Background(), msg("late"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"late"}, rec.messages())
	assert.True(t, b.IsEmpty())
}

func TestBuffer_NilTransport(t *testing.T) {
	_, err := NewBuffer(nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "transport", cfgErr.Field)
}

func TestBuffer_ConcurrentPush(t *testing.T) {
	rec := &recordingTransport{}
	b, err := NewBuffer(rec, WithBuffering(true), WithMaxCapacity(7), WithFlushInterval(time.Millisecond))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				_, _ = b.Push(context.Background(), msg(fmt.Sprintf("%d-%d", w, i)))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, b.Close())

	events := rec.getEvents()
	assert.Len(t, events, 200)
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		assert.False(t, seen[ev.Message], "duplicate delivery of %s", ev.Message)
		seen[ev.Message] = true
	}
}
