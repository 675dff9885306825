package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxMembers caps the roster size of each society. Zero means no cap.
func WithMaxMembers(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxMembers = n
		}
	}
}
