// Package registry maps device ids to their live connection.
package registry

import (
	"hash/fnv"
	"sort"
	"sync"
)

const shardCount = 32

// Sink accepts frames for a connected device. Push must not block and
// returns false when the frame could not be queued.
type Sink interface {
	Push(data []byte) bool
}

type shard struct {
	sync.RWMutex
	sinks map[string]Sink
}

// Registry is a sharded map of device id to Sink. The last Set for an id
// wins.
type Registry struct {
	shards [shardCount]*shard
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sinks: make(map[string]Sink)}
	}
	return r
}

func (r *Registry) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return r.shards[h.Sum32()%shardCount]
}

// Set binds deviceID to sink, replacing any previous binding.
func (r *Registry) Set(deviceID string, sink Sink) {
	s := r.shardFor(deviceID)
	s.Lock()
	s.sinks[deviceID] = sink
	s.Unlock()
}

// Get returns the sink bound to deviceID.
func (r *Registry) Get(deviceID string) (Sink, bool) {
	s := r.shardFor(deviceID)
	s.RLock()
	sink, ok := s.sinks[deviceID]
	s.RUnlock()
	return sink, ok
}

// Has reports whether deviceID is bound.
func (r *Registry) Has(deviceID string) bool {
	_, ok := r.Get(deviceID)
	return ok
}

// Delete removes the binding of deviceID unconditionally.
func (r *Registry) Delete(deviceID string) {
	s := r.shardFor(deviceID)
	s.Lock()
	delete(s.sinks, deviceID)
	s.Unlock()
}

// CompareAndDelete removes the binding of deviceID only if it still points
// to sink. The check and the removal happen under the same lock.
func (r *Registry) CompareAndDelete(deviceID string, sink Sink) bool {
	s := r.shardFor(deviceID)
	s.Lock()
	defer s.Unlock()

	if cur, ok := s.sinks[deviceID]; ok && cur == sink {
		delete(s.sinks, deviceID)
		return true
	}
	return false
}

// Len returns the number of bound devices.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.RLock()
		n += len(s.sinks)
		s.RUnlock()
	}
	return n
}

// DeviceIDs returns the sorted ids of all bound devices.
func (r *Registry) DeviceIDs() []string {
	ids := make([]string, 0)
	for _, s := range r.shards {
		s.RLock()
		for id := range s.sinks {
			ids = append(ids, id)
		}
		s.RUnlock()
	}
	sort.Strings(ids)
	return ids
}
