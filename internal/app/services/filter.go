package services

import "strings"

// findMatchIndex scans count items from start, wrapping around, and returns
// the first index for which matches is true or -1.
func findMatchIndex(count, start int, forward bool, matches func(int) bool) int {
	if count == 0 {
		return -1
	}
	if start < 0 {
		if forward {
			start = 0
		} else {
			start = count - 1
		}
	} else {
		start %= count
	}
	for i := range count {
		var idx int
		if forward {
			idx = (start + i) % count
		} else {
			idx = (start - i + count) % count
		}
		if matches(idx) {
			return idx
		}
	}
	return -1
}

// FindMatch returns the index of the first row at or after start whose path
// contains query, ignoring case. An empty query matches nothing.
func (s *StatusView) FindMatch(query string, start int, forward bool) int {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	if lowerQuery == "" {
		return -1
	}
	return findMatchIndex(len(s.Rows), start, forward, func(i int) bool {
		return strings.Contains(strings.ToLower(s.Rows[i].Path), lowerQuery)
	})
}

// SearchFrom selects the first match starting at the current row.
func (s *StatusView) SearchFrom(query string) bool {
	idx := s.FindMatch(query, max(s.Index, 0), true)
	if idx < 0 {
		return false
	}
	s.Index = idx
	return true
}

// SearchNext selects the next match after the current row, or the previous
// one when forward is false.
func (s *StatusView) SearchNext(query string, forward bool) bool {
	start := s.Index + 1
	if !forward {
		start = s.Index - 1
	}
	idx := s.FindMatch(query, start, forward)
	if idx < 0 {
		return false
	}
	s.Index = idx
	return true
}
