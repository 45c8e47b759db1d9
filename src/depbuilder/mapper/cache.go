package mapper

import (
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/model"
)

// CacheKeyToSlot drops the content hash from key, leaving the location of the entry.
func CacheKeyToSlot(key entity.CacheKey) model.CacheSlot {
	return model.CacheSlot{
		Path:      key.Path,
		Method:    int(key.Method),
		Line:      key.Position.Line,
		Character: key.Position.Character,
	}
}

// CacheEntryToKey rebuilds the full key of a stored entry.
func CacheEntryToKey(e *model.CacheEntry) entity.CacheKey {
	return entity.CacheKey{
		Path:        e.Slot.Path,
		ContentHash: e.ContentHash,
		Method:      entity.Method(e.Slot.Method),
		Position:    entity.Position{Line: e.Slot.Line, Character: e.Slot.Character},
	}
}
