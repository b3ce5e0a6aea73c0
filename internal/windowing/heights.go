package windowing

// HeightCache maps thread ids to their last measured height. Entries are
// replaced, never removed, for the lifetime of the cache.
type HeightCache struct {
	defaultHeight int
	heights       map[string]int
}

// NewHeightCache returns an empty cache that reports defaultHeight for
// threads that have not been measured.
func NewHeightCache(defaultHeight int) *HeightCache {
	if defaultHeight <= 0 {
		defaultHeight = DefaultThreadHeight
	}
	return &HeightCache{
		defaultHeight: defaultHeight,
		heights:       make(map[string]int),
	}
}

// Get returns the measured height for id, or the default when id has not
// been measured or measured as empty.
func (c *HeightCache) Get(id string) int {
	if c == nil {
		return DefaultThreadHeight
	}
	if h, ok := c.heights[id]; ok && h > 0 {
		return h
	}
	return c.defaultHeight
}

// Set records a measurement, overwriting any previous value.
func (c *HeightCache) Set(id string, height int) {
	if c == nil || id == "" {
		return
	}
	c.heights[id] = height
}

// Has reports whether id has been measured.
func (c *HeightCache) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.heights[id]
	return ok
}

// Lookup returns the raw recorded measurement for id.
func (c *HeightCache) Lookup(id string) (int, bool) {
	if c == nil {
		return 0, false
	}
	h, ok := c.heights[id]
	return h, ok
}

// Len returns the number of measured threads.
func (c *HeightCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.heights)
}

// Default returns the height used for unmeasured threads.
func (c *HeightCache) Default() int {
	if c == nil {
		return DefaultThreadHeight
	}
	return c.defaultHeight
}

// Snapshot returns a copy of the recorded measurements.
func (c *HeightCache) Snapshot() map[string]int {
	out := make(map[string]int, c.Len())
	if c == nil {
		return out
	}
	for id, h := range c.heights {
		out[id] = h
	}
	return out
}
