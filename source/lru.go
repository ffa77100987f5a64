package source

import "container/list"

// unitCache is a byte-bounded LRU of decoded units. Not safe for concurrent
// use; the Source that owns it is single-threaded.
type unitCache struct {
	maxBytes int64
	size     int64
	entries  map[int64]*list.Element
	order    *list.List // front = most recently used
}

type cachedUnit struct {
	unit int64
	data []byte
}

func newUnitCache(maxBytes int64) *unitCache {
	return &unitCache{
		maxBytes: maxBytes,
		entries:  make(map[int64]*list.Element),
		order:    list.New(),
	}
}

func (c *unitCache) get(unit int64) ([]byte, bool) {
	elem, ok := c.entries[unit]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cachedUnit).data, true //nolint:errcheck // type is guaranteed by put
}

func (c *unitCache) put(unit int64, data []byte) {
	n := int64(len(data))
	if n > c.maxBytes {
		return
	}
	if elem, ok := c.entries[unit]; ok {
		c.order.MoveToFront(elem)
		return
	}
	for c.size+n > c.maxBytes {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}
	c.entries[unit] = c.order.PushFront(&cachedUnit{unit: unit, data: data})
	c.size += n
}

func (c *unitCache) remove(elem *list.Element) {
	entry := elem.Value.(*cachedUnit) //nolint:errcheck // type is guaranteed by put
	c.order.Remove(elem)
	delete(c.entries, entry.unit)
	c.size -= int64(len(entry.data))
}

func (c *unitCache) clear() {
	clear(c.entries)
	c.order.Init()
	c.size = 0
}
