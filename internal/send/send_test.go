package send

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerOwnsSingleProcess(t *testing.T) {
	m := &Manager{cfg: Config{ProcessCount: 1, ProcessIndex: 1}}
	assert.True(t, m.owns("anything"), "a single-process fleet owns every instance")
}

func TestManagerOwnsPartitionsExhaustively(t *testing.T) {
	const processCount = 4
	managers := make([]*Manager, processCount)
	for i := range managers {
		managers[i] = &Manager{cfg: Config{ProcessCount: processCount, ProcessIndex: i + 1}}
	}

	ids := []string{"inst-a", "inst-b", "inst-c", "inst-d", "inst-e", "inst-f", "inst-g"}
	for _, id := range ids {
		owners := 0
		for _, m := range managers {
			if m.owns(id) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "instance %s must be owned by exactly one shard", id)
	}
}

func TestManagerOwnsStableAcrossCalls(t *testing.T) {
	m := &Manager{cfg: Config{ProcessCount: 3, ProcessIndex: 2}}
	first := m.owns("stable-instance")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, m.owns("stable-instance"))
	}
}

func TestDroppedSetMarkAndCheckConsumes(t *testing.T) {
	d := newDroppedSet()

	assert.False(t, d.check("https://remote.example/objects/1"), "unmarked object is not dropped")

	d.mark("https://remote.example/objects/1")
	assert.True(t, d.check("https://remote.example/objects/1"), "marked object reports dropped once")
	assert.False(t, d.check("https://remote.example/objects/1"), "check consumes the mark")
}

func TestDroppedSetIgnoresEmptyObjectID(t *testing.T) {
	d := newDroppedSet()
	d.mark("")
	assert.False(t, d.check(""), "empty object id is never considered dropped")
}
