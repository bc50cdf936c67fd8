package points

// StoreBuilderOption configures a Store.
type StoreBuilderOption func(*store)

// WithCapacity preallocates room for n points.
func WithCapacity(n int) StoreBuilderOption {
	return func(s *store) {
		if n > 0 {
			s.index = make(map[any]uint32, n)
			s.ids = make([]any, 0, n)
			s.coords = make([]float32, 0, n*4)
		}
	}
}

// WithDefaultRadius sets the radius InsertRecords uses for records without one. The default is 1.
func WithDefaultRadius(r float32) StoreBuilderOption {
	return func(s *store) {
		s.defaultRadius = r
	}
}

// WithIDKey sets the record key InsertRecords reads ids from. The default is "id".
func WithIDKey(key string) StoreBuilderOption {
	return func(s *store) {
		if key != "" {
			s.idKey = key
		}
	}
}
