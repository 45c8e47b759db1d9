package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/model"
)

func TestCacheKeyMapping(t *testing.T) {
	key := entity.CacheKey{
		Path:        "/ws/a.cc",
		ContentHash: "abc",
		Method:      entity.MethodReferences,
		Position:    entity.Position{Line: 1, Character: 2},
	}

	slot := CacheKeyToSlot(key)
	assert.Equal(t, model.CacheSlot{Path: "/ws/a.cc", Method: int(entity.MethodReferences), Line: 1, Character: 2}, slot)

	other := key
	other.ContentHash = "def"
	assert.Equal(t, slot, CacheKeyToSlot(other), "content hash does not move the slot")

	assert.Equal(t, key, CacheEntryToKey(&model.CacheEntry{Slot: slot, ContentHash: "abc"}))
}
