package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("/iov/v1/")

	assert.Equal(t, "iov/v1", b.Root())
	assert.Equal(t, "iov/v1/online/V1", b.Build("online", "V1"))
	assert.Equal(t, "iov/v1/online/+", b.BuildWildcard("online"))
	assert.Equal(t, "$share/feed/iov/v1/online/+", Shared("feed", b.BuildWildcard("online")))
	assert.Equal(t, "iov/v1/#", b.All())
	assert.Equal(t, "online/V1", NewBuilder("").Build("online", "V1"))
}

func TestBuilderID(t *testing.T) {
	b := NewBuilder("iov/v1")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"iov/v1/online/V1", "V1", true},
		{"iov/v1/online/", "", false},
		{"iov/v1/online/V1/x", "", false},
		{"iov/v1/register/V1", "", false},
	}
	for _, tt := range tests {
		id, ok := b.ID("online", tt.topic)
		assert.Equal(t, tt.wantOK, ok, tt.topic)
		assert.Equal(t, tt.wantID, id, tt.topic)
	}
}
