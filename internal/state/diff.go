package state

// ChangedKeys returns the keys of current whose value is new or differs from
// previous, in current's key order. Keys that only exist in previous are not
// reported.
func ChangedKeys(previous, current Snapshot) []string {
	changed := make([]string, 0)
	current.Each(func(key string, v Value) {
		old, ok := previous.Get(key)
		if !ok || old != v {
			changed = append(changed, key)
		}
	})
	return changed
}
