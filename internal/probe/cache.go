package probe

import (
	"reflect"
	"sync"

	"github.com/roach88/rowmap/internal/sample"
)

// Cache memoizes discovery results per record type.
//
// Concurrent first use of the same type is serialized by a per-type
// one-shot latch: a single winner performs discovery, everyone else
// waits on the latch and shares the result, including a failure.
type Cache struct {
	entries sync.Map // reflect.Type -> *cacheEntry
}

type cacheEntry struct {
	once sync.Once
	d    *Discovery
	err  error
}

// Discover returns the memoized Discovery for t, running it on first use.
func (c *Cache) Discover(t reflect.Type, reg *sample.Registry) (*Discovery, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	e, _ := c.entries.LoadOrStore(t, &cacheEntry{})
	entry := e.(*cacheEntry)
	entry.once.Do(func() {
		entry.d, entry.err = Discover(t, reg)
	})
	return entry.d, entry.err
}
