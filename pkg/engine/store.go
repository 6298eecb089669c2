package engine

import (
	"fmt"
	"sync"
)

// factBucket holds the facts of one type with O(1) lookup and removal.
type factBucket struct {
	index   map[string]int
	items   []Fact
	version uint64
}

func newFactBucket() *factBucket {
	return &factBucket{index: make(map[string]int)}
}

func (b *factBucket) remove(id string) {
	i := b.index[id]
	last := len(b.items) - 1
	if i != last {
		b.items[i] = b.items[last]
		b.index[b.items[i].FactID()] = i
	}
	b.items[last] = nil
	b.items = b.items[:last]
	delete(b.index, id)
}

// FactStore holds the working set of facts, grouped by declared type.
// It supports a single mutator at a time; scoring passes read a stable view.
type FactStore struct {
	mu      sync.RWMutex
	schema  *Schema
	buckets map[*FactType]*factBucket
}

// NewFactStore creates an empty store for the schema.
func NewFactStore(schema *Schema) *FactStore {
	s := &FactStore{
		schema:  schema,
		buckets: make(map[*FactType]*factBucket, len(schema.order)),
	}
	for _, ft := range schema.order {
		s.buckets[ft] = newFactBucket()
	}
	return s
}

// Schema returns the schema the store validates facts against.
func (s *FactStore) Schema() *Schema { return s.schema }

// Insert adds facts. A fact whose identity already exists in its type is rejected
// and nothing after it is inserted.
func (s *FactStore) Insert(facts ...Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range facts {
		ft, err := s.schema.TypeOf(f)
		if err != nil {
			return NewStateError("cannot insert fact", err).WithOperation("insert")
		}
		b := s.buckets[ft]
		id := f.FactID()
		if _, exists := b.index[id]; exists {
			return NewStateError(fmt.Sprintf("fact %s already exists", FactRef(f)), nil).
				WithOperation("insert").
				WithCode(ErrCodeDuplicate)
		}
		b.index[id] = len(b.items)
		b.items = append(b.items, f)
		b.version++
	}
	return nil
}

// Update replaces the fact with the same type and identity by the given snapshot.
func (s *FactStore) Update(f Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ft, err := s.schema.TypeOf(f)
	if err != nil {
		return NewStateError("cannot update fact", err).WithOperation("update")
	}
	b := s.buckets[ft]
	i, exists := b.index[f.FactID()]
	if !exists {
		return NewStateError(fmt.Sprintf("fact %s not found", FactRef(f)), nil).
			WithOperation("update").
			WithCode(ErrCodeNotFound)
	}
	b.items[i] = f
	b.version++
	return nil
}

// Retract removes the fact of the named type with the given identity.
func (s *FactStore) Retract(typeName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ft, ok := s.schema.Type(typeName)
	if !ok {
		return NewStateError(fmt.Sprintf("unknown fact type %q", typeName), nil).
			WithOperation("retract").
			WithCode(ErrCodeUnknownType)
	}
	b := s.buckets[ft]
	if _, exists := b.index[id]; !exists {
		return NewStateError(fmt.Sprintf("fact %s:%s not found", typeName, id), nil).
			WithOperation("retract").
			WithCode(ErrCodeNotFound)
	}
	b.remove(id)
	b.version++
	return nil
}

// Get returns the fact of the named type with the given identity.
func (s *FactStore) Get(typeName, id string) (Fact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, ok := s.schema.Type(typeName)
	if !ok {
		return nil, false
	}
	b := s.buckets[ft]
	i, exists := b.index[id]
	if !exists {
		return nil, false
	}
	return b.items[i], true
}

// AllOf returns a copy of every fact of the named type, in no particular order.
func (s *FactStore) AllOf(typeName string) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, ok := s.schema.Type(typeName)
	if !ok {
		return nil, NewStateError(fmt.Sprintf("unknown fact type %q", typeName), nil).
			WithOperation("allOf").
			WithCode(ErrCodeUnknownType)
	}
	return append([]Fact(nil), s.buckets[ft].items...), nil
}

// Version returns a counter that changes whenever facts of the type change.
func (s *FactStore) Version(typeName string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ft, ok := s.schema.Type(typeName)
	if !ok {
		return 0
	}
	return s.buckets[ft].version
}

// Counts returns the number of facts per type name.
func (s *FactStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.buckets))
	for ft, b := range s.buckets {
		counts[ft.name] = len(b.items)
	}
	return counts
}

// Len returns the total number of facts.
func (s *FactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.buckets {
		n += len(b.items)
	}
	return n
}

// view captures the initialized facts of the requested types and their
// versions. The caller must hold the read lock.
func (s *FactStore) view(types map[*FactType]struct{}) *factView {
	v := &factView{
		facts:    make(map[*FactType][]Fact, len(types)),
		versions: make(map[*FactType]uint64, len(types)),
	}
	for ft := range types {
		b := s.buckets[ft]
		v.versions[ft] = b.version
		if ft.initialized == nil {
			v.facts[ft] = b.items
			continue
		}
		out := make([]Fact, 0, len(b.items))
		for _, f := range b.items {
			if ft.initialized(f) {
				out = append(out, f)
			}
		}
		v.facts[ft] = out
	}
	return v
}

// factView is the read-only input of one scoring pass.
type factView struct {
	facts    map[*FactType][]Fact
	versions map[*FactType]uint64
}

func (v *factView) of(ft *FactType) []Fact {
	return v.facts[ft]
}
