package availability

import "slices"

// DefaultSuggestions is how many alternatives are offered when none is asked for.
const DefaultSuggestions = 3

// Nearest ranks the grid slots that are not occupied by their distance in
// minutes from desired and returns the first k. Ties keep grid order, so the
// earlier slot wins. An empty result means there is nothing left to offer.
func Nearest(desired LocalTime, occupied, grid []LocalTime, k int) []LocalTime {
	if k <= 0 {
		k = DefaultSuggestions
	}

	taken := make(map[LocalTime]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	available := make([]LocalTime, 0, len(grid))
	for _, t := range grid {
		if _, ok := taken[t]; ok {
			continue
		}
		taken[t] = struct{}{}
		available = append(available, t)
	}

	slices.SortStableFunc(available, func(a, b LocalTime) int {
		return distance(a, desired) - distance(b, desired)
	})
	if len(available) > k {
		available = available[:k]
	}
	return available
}

func distance(a, b LocalTime) int {
	d := a.Minutes() - b.Minutes()
	if d < 0 {
		return -d
	}
	return d
}
