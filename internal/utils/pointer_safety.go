package utils

// ValueOr dereferences v, yielding fallback for nil or a zero value.
func ValueOr[T comparable](v *T, fallback T) T {
	var zero T
	if v == nil || *v == zero {
		return fallback
	}
	return *v
}
