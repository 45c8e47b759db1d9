package entity

// CacheKey identifies one cached query result. A result is only valid for the exact
// file content it was computed from.
type CacheKey struct {
	Path        string
	ContentHash string
	Method      Method
	Position    Position
}

// CacheStats describes the occupancy of the result cache.
type CacheStats struct {
	Entries  int `json:"entries"`
	Capacity int `json:"capacity"`
	Files    int `json:"files"`
}
