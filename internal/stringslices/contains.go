package stringslices

import "strings"

// ContainsFold reports whether a holds s, ignoring case.
func ContainsFold(a []string, s string) bool {
	for _, v := range a {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
