package cache

// disabledKinds holds request kinds that should not be cached (configured at runtime)
var disabledKinds = make(map[string]bool)

// SetDisabledKinds sets the list of request kinds that should not be cached
func SetDisabledKinds(kinds []string) {
	disabledKinds = make(map[string]bool)
	for _, kind := range kinds {
		disabledKinds[kind] = true
	}
}

// AddDisabledKinds adds request kinds to the disabled list
func AddDisabledKinds(kinds []string) {
	for _, kind := range kinds {
		disabledKinds[kind] = true
	}
}

// IsCacheable checks if results for a request kind may be cached
func IsCacheable(kind string) bool {
	return !disabledKinds[kind]
}
