package flowcompose

import "reflect"

// callKey is the exact argument tuple of one call. Keys are compared
// element by element with ==, so distinct tuples never collide.
type callKey []any

// newCallKey copies args into a key. Every element must be comparable and
// equal to itself (NaN, or a struct holding one, is not); the first one
// that fails either check fails the key.
func newCallKey(owner string, args []any) (callKey, error) {
	for i, a := range args {
		if a == nil {
			continue
		}
		if v := reflect.ValueOf(a); !v.Comparable() || !v.Equal(v) {
			return nil, &UncacheableError{Name: owner, Position: i, Type: typeName(a)}
		}
	}
	return append(callKey(nil), args...), nil
}

func (k callKey) equal(other callKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

type cacheEntry struct {
	key   callKey
	value any
}

// callCache memoizes the results of one Invoker. Calls are bucketed by
// arity and the first argument's dynamic type to keep scans short.
type callCache struct {
	buckets map[bucketKey][]cacheEntry
	size    int
}

type bucketKey struct {
	arity int
	first reflect.Type
}

func newCallCache() *callCache {
	return &callCache{buckets: make(map[bucketKey][]cacheEntry)}
}

func bucketOf(k callKey) bucketKey {
	b := bucketKey{arity: len(k)}
	if len(k) > 0 && k[0] != nil {
		b.first = reflect.TypeOf(k[0])
	}
	return b
}

func (c *callCache) load(k callKey) (any, bool) {
	for _, e := range c.buckets[bucketOf(k)] {
		if e.key.equal(k) {
			return e.value, true
		}
	}
	return nil, false
}

func (c *callCache) store(k callKey, v any) {
	b := bucketOf(k)
	for i, e := range c.buckets[b] {
		if e.key.equal(k) {
			c.buckets[b][i].value = v
			return
		}
	}
	c.buckets[b] = append(c.buckets[b], cacheEntry{key: k, value: v})
	c.size++
}

func (c *callCache) len() int {
	return c.size
}
