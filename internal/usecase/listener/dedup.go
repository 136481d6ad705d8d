package listener

// recentKeys remembers notification keys. Past capacity it keeps only the newest keep keys.
type recentKeys struct {
	capacity int
	keep     int
	set      map[string]struct{}
	order    []string
}

func newRecentKeys(capacity, keep int) *recentKeys {
	if keep > capacity {
		keep = capacity
	}
	return &recentKeys{
		capacity: capacity,
		keep:     keep,
		set:      make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// add records key and reports whether it was new.
func (r *recentKeys) add(key string) bool {
	if _, ok := r.set[key]; ok {
		return false
	}
	r.set[key] = struct{}{}
	r.order = append(r.order, key)
	if len(r.order) > r.capacity {
		r.trim()
	}
	return true
}

func (r *recentKeys) trim() {
	drop := len(r.order) - r.keep
	for _, k := range r.order[:drop] {
		delete(r.set, k)
	}
	kept := make([]string, r.keep, r.capacity)
	copy(kept, r.order[drop:])
	r.order = kept
}

func (r *recentKeys) len() int { return len(r.order) }
