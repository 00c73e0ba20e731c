// Package models defines the core domain entities: item identities, observed
// events, statistics summaries, daily rollups, and derived market signals.
package models

// ItemKey identifies a tradeable good by its (item_id, item_name) pair.
// Either field may be absent: the upstream API omits display names for some
// items, and a handful of malformed listings carry no id at all. Two keys
// refer to the same item iff both fields match under absent-equals-absent
// semantics (the SQL `IS` comparison, not `=`).
type ItemKey struct {
	ID   *string `json:"item_id"`
	Name *string `json:"item_name"`
}

// NewItemKey builds an ItemKey from raw upstream fields. A missing display
// name falls back to the item id, so Name is absent only when ID is too.
func NewItemKey(id, displayName *string) ItemKey {
	name := displayName
	if name == nil || *name == "" {
		name = id
	}
	return ItemKey{ID: id, Name: name}
}

// Equal reports whether two keys identify the same item, treating two
// absent fields as equal.
func (k ItemKey) Equal(other ItemKey) bool {
	return ptrEqual(k.ID, other.ID) && ptrEqual(k.Name, other.Name)
}

// Label returns a human-readable identifier for logging: the name if set,
// otherwise the id, otherwise "unknown".
func (k ItemKey) Label() string {
	if k.Name != nil && *k.Name != "" {
		return *k.Name
	}
	if k.ID != nil {
		return *k.ID
	}
	return "unknown"
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
