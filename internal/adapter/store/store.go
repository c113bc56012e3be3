package store

// Entry is a cached geocoding result for one normalized address.
type Entry struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Display string  `json:"display"`
}

// GeocodeCache is the interface for the address-to-coordinate cache.
// Only successful lookups are stored; there is no negative entry.
type GeocodeCache interface {
	// Load reads the persisted cache into memory. A missing or unreadable
	// backing file leaves the cache empty and is not an error.
	Load() error

	// Get returns the entry stored for a normalized address.
	Get(key string) (Entry, bool)

	// Put stores the entry for a normalized address in memory.
	Put(key string, entry Entry)

	// Flush writes the in-memory cache to its backing storage.
	Flush() error

	// Len returns the number of cached addresses.
	Len() int
}
