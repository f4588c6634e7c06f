// Package cache stores rendered output with LRU eviction and TTL support.
//
// Entries are addressed by a namespace and a Key. A key with a sub key
// stores one variant of a main key, so that every variant of a template can
// be dropped at once.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
)

// Delimiter separates namespace, key and sub key in identifiers.
const Delimiter = "#"

// Key addresses a cache entry.
type Key struct {
	Key    string
	SubKey string
}

// Identifier returns namespace#key or namespace#key#subkey.
func (k Key) Identifier(namespace string) string {
	id := namespace + Delimiter + k.Key
	if k.SubKey != "" {
		id += Delimiter + k.SubKey
	}
	return id
}

// Provider is a cache backend.
type Provider interface {
	Read(key Key) ([]byte, bool)
	Write(key Key, value []byte) error
	// Clear removes the whole namespace when key is nil. A key without a
	// sub key removes the key and all of its sub keys.
	Clear(key *Key) error
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before the first read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// entry is a cached value on the LRU list.
type entry struct {
	id        string
	value     []byte
	createdAt time.Time
	size      int64
	prev      *entry
	next      *entry
}

// MemoryProvider is an in-process Provider.
type MemoryProvider struct {
	namespace   string
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	// LRU list with sentinel head and tail
	head *entry
	tail *entry

	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider creates a provider. maxSize bounds the stored bytes and
// a ttl of zero keeps entries until they are evicted.
func NewMemoryProvider(namespace string, maxSize int64, ttl time.Duration) *MemoryProvider {
	p := &MemoryProvider{
		namespace: namespace,
		entries:   make(map[string]*entry),
		maxSize:   maxSize,
		ttl:       ttl,
		now:       time.Now,
		head:      &entry{},
		tail:      &entry{},
	}
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

// Namespace returns the provider's namespace.
func (p *MemoryProvider) Namespace() string {
	return p.namespace
}

// Read returns a copy of the cached value.
func (p *MemoryProvider) Read(key Key) ([]byte, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	e, ok := p.entries[key.Identifier(p.namespace)]
	if !ok {
		atomic.AddInt64(&p.misses, 1)
		return nil, false
	}

	if p.expired(e) {
		p.remove(e)
		atomic.AddInt64(&p.misses, 1)
		return nil, false
	}

	p.moveToFront(e)
	atomic.AddInt64(&p.hits, 1)
	return append([]byte(nil), e.value...), true
}

// Write stores value, evicting least recently used entries as needed.
func (p *MemoryProvider) Write(key Key, value []byte) error {
	if key.Key == "" {
		return docerrors.NewInvalidArgumentError("EMPTY_CACHE_KEY", "cache key must not be empty")
	}
	if strings.Contains(key.Key, Delimiter) {
		return docerrors.NewInvalidArgumentError("INVALID_CACHE_KEY",
			"cache key must not contain "+Delimiter).WithContext("key", key.Key)
	}
	size := int64(len(value))
	if p.maxSize > 0 && size > p.maxSize {
		return docerrors.NewInvalidArgumentError("ENTRY_TOO_LARGE", "value exceeds the cache size").
			WithContext("size", size).
			WithContext("max_size", p.maxSize)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	id := key.Identifier(p.namespace)
	stored := append([]byte(nil), value...)

	if e, ok := p.entries[id]; ok {
		p.currentSize += size - e.size
		e.value = stored
		e.size = size
		e.createdAt = p.now()
		p.moveToFront(e)
		p.evictIfNeeded(0)
		atomic.AddInt64(&p.sets, 1)
		return nil
	}

	p.evictIfNeeded(size)

	e := &entry{id: id, value: stored, createdAt: p.now(), size: size}
	p.entries[id] = e
	p.currentSize += size
	p.addToFront(e)
	atomic.AddInt64(&p.sets, 1)
	return nil
}

// Clear implements Provider.
func (p *MemoryProvider) Clear(key *Key) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if key != nil && key.SubKey != "" {
		if e, ok := p.entries[key.Identifier(p.namespace)]; ok {
			p.remove(e)
			atomic.AddInt64(&p.deletes, 1)
		}
		return nil
	}

	prefix := p.namespace + Delimiter
	exact := ""
	if key != nil {
		exact = key.Identifier(p.namespace)
		prefix = exact + Delimiter
	}

	for id, e := range p.entries {
		if id == exact || strings.HasPrefix(id, prefix) {
			p.remove(e)
			atomic.AddInt64(&p.deletes, 1)
		}
	}
	return nil
}

// Stats returns the current counters.
func (p *MemoryProvider) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return Stats{
		Entries:   len(p.entries),
		Size:      p.currentSize,
		MaxSize:   p.maxSize,
		Hits:      atomic.LoadInt64(&p.hits),
		Misses:    atomic.LoadInt64(&p.misses),
		Sets:      atomic.LoadInt64(&p.sets),
		Deletes:   atomic.LoadInt64(&p.deletes),
		Evictions: atomic.LoadInt64(&p.evictions),
	}
}

func (p *MemoryProvider) expired(e *entry) bool {
	return p.ttl > 0 && p.now().Sub(e.createdAt) > p.ttl
}

// evictIfNeeded drops entries from the tail until newSize more bytes fit.
func (p *MemoryProvider) evictIfNeeded(newSize int64) {
	if p.maxSize <= 0 {
		return
	}
	for p.currentSize+newSize > p.maxSize && p.tail.prev != p.head {
		p.remove(p.tail.prev)
		atomic.AddInt64(&p.evictions, 1)
	}
}

func (p *MemoryProvider) remove(e *entry) {
	p.removeFromList(e)
	delete(p.entries, e.id)
	p.currentSize -= e.size
}

func (p *MemoryProvider) addToFront(e *entry) {
	e.prev = p.head
	e.next = p.head.next
	p.head.next.prev = e
	p.head.next = e
}

func (p *MemoryProvider) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (p *MemoryProvider) moveToFront(e *entry) {
	p.removeFromList(e)
	p.addToFront(e)
}
