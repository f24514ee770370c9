package cache

// Cache defines the interface for memoizing successful operation results.
// This interface allows for different implementations (in-memory, Redis, etc.)
type Cache interface {
	// Get retrieves a cached result by deduplication key
	// Returns the cached value and true if found, nil and false otherwise
	Get(key string) (interface{}, bool)

	// Set stores a result in the cache under the given deduplication key
	Set(key string, value interface{})

	// Close releases any resources held by the cache
	Close()
}
