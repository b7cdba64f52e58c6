// markers.go tracks which errors were already reported or must skip the global hook.

package gatey

import (
	"reflect"
	"sync"
)

type marker uint8

const (
	markHandled marker = 1 << iota
	markSkipGlobalHook
)

// maxMarkedErrors bounds the side-table; the oldest entries are evicted first.
const maxMarkedErrors = 1024

// markerTable is a bounded identity-keyed set of error markers.
// Keys are evicted in insertion order using a ring of keys.
type markerTable struct {
	mu       sync.Mutex
	marks    map[any]marker
	ring     []any
	writeIdx int
	maxSize  int
}

var markers = newMarkerTable(maxMarkedErrors)

func newMarkerTable(maxSize int) *markerTable {
	return &markerTable{
		marks:   make(map[any]marker, maxSize),
		ring:    make([]any, 0, maxSize),
		maxSize: maxSize,
	}
}

func (t *markerTable) set(err error, m marker) {
	key, ok := markerKey(err)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, exists := t.marks[key]; exists {
		t.marks[key] = cur | m
		return
	}
	if len(t.ring) < t.maxSize {
		t.ring = append(t.ring, key)
	} else {
		delete(t.marks, t.ring[t.writeIdx])
		t.ring[t.writeIdx] = key
		t.writeIdx = (t.writeIdx + 1) % t.maxSize
	}
	t.marks[key] = m
}

// has reports whether err or any error it wraps carries m.
func (t *markerTable) has(err error, m marker) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	found := false
	walkChain(err, func(e error) {
		if found {
			return
		}
		if key, ok := markerKey(e); ok && t.marks[key]&m != 0 {
			found = true
		}
	})
	return found
}

// marked reports whether err itself, ignoring what it wraps, carries a marker.
func (t *markerTable) marked(err error) bool {
	key, ok := markerKey(err)
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks[key] != 0
}

func (t *markerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marks)
}

// markerKey returns err itself when it can be used as a map key. Errors of
// non-comparable types cannot be marked.
func markerKey(err error) (any, bool) {
	if err == nil {
		return nil, false
	}
	if !reflect.ValueOf(err).Comparable() {
		return nil, false
	}
	return err, true
}

// MarkHandled records that err was already reported, so the global hook does
// not report it again.
func MarkHandled(err error) { markers.set(err, markHandled) }

// MarkSkipGlobalHook records that the global hook must not report err.
func MarkSkipGlobalHook(err error) { markers.set(err, markSkipGlobalHook) }

// WasHandled reports whether err, or an error it wraps, was marked handled.
func WasHandled(err error) bool { return markers.has(err, markHandled) }

// ShouldSkipGlobalHook reports whether err, or an error it wraps, was marked
// to skip the global hook.
func ShouldSkipGlobalHook(err error) bool { return markers.has(err, markSkipGlobalHook) }
