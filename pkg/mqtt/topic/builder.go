package topic

import "strings"

// Builder constructs topic strings under a fixed root namespace.
// Pattern: {root}/{segment}/{id}
type Builder struct {
	// root is the base namespace for all topics (e.g. "iov/v1").
	root string
}

// NewBuilder returns a Builder for root. Surrounding slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Root returns the namespace the builder was created with.
func (b *Builder) Root() string { return b.root }

// Build returns the topic for segment and a concrete identifier.
func (b *Builder) Build(segment, id string) string {
	return b.join(segment, id)
}

// BuildWildcard returns the filter matching segment for every identifier.
// Result: {root}/{segment}/+
func (b *Builder) BuildWildcard(segment string) string {
	return b.join(segment, Wildcard)
}

// All returns the filter matching every topic under the root.
func (b *Builder) All() string {
	if b.root == "" {
		return MultiWildcard
	}
	return b.root + "/" + MultiWildcard
}

// ID extracts the identifier from a topic built for segment. It reports
// false when the topic does not belong to segment.
func (b *Builder) ID(segment, topic string) (string, bool) {
	prefix := b.join(segment, "")
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := topic[len(prefix):]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Shared turns filter into a shared subscription for group, so that only
// one member of the group receives each message.
func Shared(group, filter string) string {
	return "$share/" + group + "/" + filter
}

func (b *Builder) join(segment, id string) string {
	if b.root == "" {
		return segment + "/" + id
	}
	return b.root + "/" + segment + "/" + id
}
