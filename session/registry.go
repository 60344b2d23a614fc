// File: session/registry.go
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe registry of live connections.

package session

import (
	"hash/fnv"
	"sync"
)

// Registry tracks live connections by ID.
type Registry struct {
	shards []*registryShard
	mask   uint32
}

type registryShard struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry constructs a registry with shardCount shards, rounded up to a
// power of two.
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*registryShard, m)
	for i := range shards {
		shards[i] = &registryShard{conns: make(map[string]*Conn)}
	}
	return &Registry{shards: shards, mask: m - 1}
}

func (r *Registry) shard(id string) *registryShard {
	return r.shards[fnv32(id)&r.mask]
}

// Add registers c. It reports false when the ID is already taken.
func (r *Registry) Add(c *Conn) bool {
	sh := r.shard(c.ID())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.conns[c.ID()]; ok {
		return false
	}
	sh.conns[c.ID()] = c
	return true
}

// Get fetches a connection if present.
func (r *Registry) Get(id string) (*Conn, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.conns[id]
	return c, ok
}

// Delete removes the connection with the given ID.
func (r *Registry) Delete(id string) {
	sh := r.shard(id)
	sh.mu.Lock()
	delete(sh.conns, id)
	sh.mu.Unlock()
}

// Range applies fn to a snapshot of all connections. fn may call back into
// the registry.
func (r *Registry) Range(fn func(*Conn)) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		snapshot := make([]*Conn, 0, len(sh.conns))
		for _, c := range sh.conns {
			snapshot = append(snapshot, c)
		}
		sh.mu.RUnlock()
		for _, c := range snapshot {
			fn(c)
		}
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.conns)
		sh.mu.RUnlock()
	}
	return n
}

func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
