package explore

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const visitedShards = 64

// VisitedSet records expanded positions. It is sharded by key hash so
// concurrent explorers rarely contend on the same lock.
type VisitedSet struct {
	shards [visitedShards]visitedShard
}

type visitedShard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	v := &VisitedSet{}
	for i := range v.shards {
		v.shards[i].keys = make(map[string]struct{})
	}
	return v
}

func (v *VisitedSet) shard(key string) *visitedShard {
	return &v.shards[xxhash.Sum64String(key)%visitedShards]
}

// TryMark marks key and reports whether this call was the first to do so.
func (v *VisitedSet) TryMark(key string) bool {
	s := v.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Contains reports whether key has been marked.
func (v *VisitedSet) Contains(key string) bool {
	s := v.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of marked keys.
func (v *VisitedSet) Len() int {
	n := 0
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		n += len(s.keys)
		s.mu.Unlock()
	}
	return n
}
