package slots

import "studiobook/internal/clock"

// MinBookingMinutes is the shortest booking an end-time choice may produce.
const MinBookingMinutes = 60

// EndTimes returns the slots after start's position in available that are at
// least an hour after start, in their original order. Nil means there is no
// valid end choice, including when start is not in available.
func EndTimes(start clock.TimeOfDay, available []clock.TimeOfDay) []clock.TimeOfDay {
	startIdx := -1
	for i, s := range available {
		if s == start {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil
	}

	startMin, err := clock.ToMinutes(start)
	if err != nil {
		return nil
	}

	var out []clock.TimeOfDay
	for _, s := range available[startIdx+1:] {
		m, err := clock.ToMinutes(s)
		if err != nil {
			continue
		}
		if m >= startMin+MinBookingMinutes {
			out = append(out, s)
		}
	}
	return out
}

// IsValidEnd reports whether end is one of EndTimes(start, available).
func IsValidEnd(start, end clock.TimeOfDay, available []clock.TimeOfDay) bool {
	for _, e := range EndTimes(start, available) {
		if e == end {
			return true
		}
	}
	return false
}
