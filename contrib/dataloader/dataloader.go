// Package dataloader provides generic helpers for batch loading: grouping a
// batch by key, ordering groups by requested keys, and removing duplicates
// by key.
//
// The graph package uses them to match the rows of one batched association
// query back to the records that requested them:
//
//	groups := dataloader.GroupByKey(parents, parentKey)
//	for _, child := range children {
//	    for _, p := range groups[childKey(child)] {
//	        // attach child to p
//	    }
//	}
package dataloader

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// GroupByKey groups entities by a key function. Entities sharing a key keep
// their input order.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Returns a slice of slices where each inner slice contains entities for that key.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// UniqueByKey returns values without entities whose key was already seen,
// keeping the first occurrence. The input slice is not modified.
func UniqueByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) []V {
	seen := make(map[K]struct{}, len(values))
	result := make([]V, 0, len(values))
	for _, v := range values {
		key := keyFn(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}
	return result
}
