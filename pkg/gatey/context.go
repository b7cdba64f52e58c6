// context.go carries request-scoped tags through context.Context.

package gatey

import (
	"context"
	"maps"
)

// Context key type (unexported to avoid collisions)
type tagsKey struct{}

// ContextWithTags returns a context carrying tags. Tags already carried by ctx
// are kept unless overridden. Context tags are merged into every event
// captured with the context, after the default tags and before call tags.
//
// Middleware typically attaches request tags once:
//
//	ctx = gatey.ContextWithTags(r.Context(), map[string]string{"http.route": route})
func ContextWithTags(ctx context.Context, tags map[string]string) context.Context {
	merged := maps.Clone(TagsFromContext(ctx))
	if merged == nil {
		merged = make(map[string]string, len(tags))
	}
	maps.Copy(merged, tags)
	return context.WithValue(ctx, tagsKey{}, merged)
}

// TagsFromContext returns the tags carried by ctx, or nil.
// The returned map must not be modified.
func TagsFromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	tags, _ := ctx.Value(tagsKey{}).(map[string]string)
	return tags
}
