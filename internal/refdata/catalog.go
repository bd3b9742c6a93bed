package refdata

import "sort"

// Catalog holds the named reference lists. It is read-only once built and safe
// for concurrent use.
type Catalog struct {
	lists    map[string][]string
	sets     map[string]map[string]struct{}
	warnings []string
}

// NewCatalog builds a catalog from already-extracted lists.
func NewCatalog(lists map[string][]string) *Catalog {
	c := &Catalog{
		lists: make(map[string][]string, len(lists)),
		sets:  make(map[string]map[string]struct{}, len(lists)),
	}
	for k, values := range lists {
		c.put(k, values)
	}
	return c
}

func (c *Catalog) put(key string, values []string) {
	set := make(map[string]struct{}, len(values))
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := set[v]; dup || v == "" {
			continue
		}
		set[v] = struct{}{}
		kept = append(kept, v)
	}
	c.lists[key] = kept
	c.sets[key] = set
}

// Get returns the list stored under key, nil when unknown or not loaded.
// Callers must not modify the returned slice.
func (c *Catalog) Get(key string) []string {
	if c == nil {
		return nil
	}
	return c.lists[key]
}

// Has reports whether value is in the list stored under key.
func (c *Catalog) Has(key, value string) bool {
	if c == nil {
		return false
	}
	_, ok := c.sets[key][value]
	return ok
}

// Loaded reports whether the list under key has at least one value.
func (c *Catalog) Loaded(key string) bool {
	return len(c.Get(key)) > 0
}

// Keys returns every key, sorted.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.lists))
	for k := range c.lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Warnings lists the reference defects found while loading.
func (c *Catalog) Warnings() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.warnings...)
}
