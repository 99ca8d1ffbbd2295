package crawler

import "strings"

// FilterNeighbors drops blank labels, references back to source and repeats
// within one response. Order of first occurrence is kept.
func FilterNeighbors(source string, neighbors []string) []string {
	seen := make(map[string]bool, len(neighbors))
	filtered := make([]string, 0, len(neighbors))

	for _, label := range neighbors {
		// Skip empty labels
		if strings.TrimSpace(label) == "" {
			continue
		}

		// Skip self references
		if label == source {
			continue
		}

		// Skip duplicates
		if seen[label] {
			continue
		}

		seen[label] = true
		filtered = append(filtered, label)
	}

	return filtered
}
