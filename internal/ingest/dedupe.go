package ingest

// Dedupe drops items whose key has already been seen, preserving first-seen
// order. The seen set may be pre-seeded with keys persisted by previous runs
// and is updated in place. Items with an empty key carry no stable identity
// and are always kept.
func Dedupe[T any](items []T, key func(T) string, seen map[string]struct{}) ([]T, int) {
	if seen == nil {
		seen = make(map[string]struct{}, len(items))
	}

	kept := make([]T, 0, len(items))
	removed := 0
	for _, item := range items {
		k := key(item)
		if k == "" {
			kept = append(kept, item)
			continue
		}
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, item)
	}

	return kept, removed
}
