package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()

	id := gen.NewID("clip")
	assert.True(t, strings.HasPrefix(id, "clip-"))
	_, err := uuid.Parse(strings.TrimPrefix(id, "clip-"))
	assert.NoError(t, err)

	bare := gen.NewID("")
	_, err = uuid.Parse(bare)
	assert.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.NewID("clip")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequence(t *testing.T) {
	seq := NewSequence()
	assert.Equal(t, "clip-1", seq.NewID("clip"))
	assert.Equal(t, "file-2", seq.NewID("file"))
	assert.Equal(t, "3", seq.NewID(""))
}
