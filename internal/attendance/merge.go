package attendance

// MergeEntries overlays incoming entries onto existing ones keyed by
// registration number. Existing entries keep their position, replaced
// entries are updated in place and unseen registration numbers are
// appended in submission order. A registration number repeated within
// incoming resolves to its last occurrence.
func MergeEntries(existing, incoming []Entry) []Entry {
	index := make(map[string]int, len(existing)+len(incoming))
	merged := make([]Entry, 0, len(existing)+len(incoming))
	put := func(e Entry) {
		e.RegistrationNumber = NormalizeRegistrationNumber(e.RegistrationNumber)
		if i, ok := index[e.RegistrationNumber]; ok {
			merged[i] = e
			return
		}
		index[e.RegistrationNumber] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range existing {
		put(e)
	}
	for _, e := range incoming {
		put(e)
	}
	return merged
}
