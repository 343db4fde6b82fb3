package utils

// Ptr returns a pointer to v, useful for optional fields in request bodies.
func Ptr[T any](v T) *T {
	return &v
}
