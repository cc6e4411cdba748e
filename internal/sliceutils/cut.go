package sliceutils

// Last returns the trailing n elements of s, or all of s when it is shorter.
// A negative n keeps everything.
func Last[T any](s []T, n int) []T {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
