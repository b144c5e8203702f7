// Package kv provides a sharded in-memory map keyed by user id.
package kv

import "sync"

// DefaultShards is used when New is given a non-positive count.
const DefaultShards = 32

type shard[V any] struct {
	mu   sync.RWMutex
	data map[int64]V
}

// Map is safe for concurrent use. Operations on distinct keys in different
// shards never contend.
type Map[V any] struct {
	shards []shard[V]
}

// New creates a Map with the given number of shards.
func New[V any](shards int) *Map[V] {
	if shards <= 0 {
		shards = DefaultShards
	}
	m := &Map[V]{shards: make([]shard[V], shards)}
	for i := range m.shards {
		m.shards[i].data = make(map[int64]V)
	}
	return m
}

func (m *Map[V]) shardFor(key int64) *shard[V] {
	h := uint64(key) * 0x9E3779B97F4A7C15
	return &m.shards[h%uint64(len(m.shards))]
}

// Get returns the value stored for key.
func (m *Map[V]) Get(key int64) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (m *Map[V]) Put(key int64, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Delete removes key. Missing keys are a no-op.
func (m *Map[V]) Delete(key int64) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Len counts entries across all shards. The result is not a snapshot.
func (m *Map[V]) Len() int {
	total := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		total += len(s.data)
		s.mu.RUnlock()
	}
	return total
}
