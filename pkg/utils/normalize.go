package utils

import "strings"

// NormalizeKey lowercases and trims s for case-insensitive comparison of
// emails and golfer names.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanList trims every entry, drops blanks, and removes case-insensitive
// duplicates while keeping the first spelling seen.
func CleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ContainsFold reports whether list holds s, ignoring case and surrounding space.
func ContainsFold(list []string, s string) bool {
	k := NormalizeKey(s)
	if k == "" {
		return false
	}
	for _, v := range list {
		if NormalizeKey(v) == k {
			return true
		}
	}
	return false
}

// RemoveFold returns list without entries equal to s ignoring case, and whether any were removed.
func RemoveFold(list []string, s string) ([]string, bool) {
	k := NormalizeKey(s)
	out := make([]string, 0, len(list))
	removed := false
	for _, v := range list {
		if NormalizeKey(v) == k {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}
