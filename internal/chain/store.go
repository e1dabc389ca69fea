package chain

import (
	"context"
)

// Store is a journaled key/value map living on a host.
// Reads are unsynchronized; run them inside Transact or View when other goroutines may write.
type Store[K comparable, V any] struct {
	host *Host
	data map[K]V
	zero V
}

// NewStore creates a store whose missing keys read as zero.
func NewStore[K comparable, V any](host *Host, zero V) *Store[K, V] {
	return &Store[K, V]{
		host: host,
		data: make(map[K]V),
		zero: zero,
	}
}

// Get returns the value stored under k, or the store's zero value.
func (s *Store[K, V]) Get(k K) V {
	if v, ok := s.data[k]; ok {
		return v
	}
	return s.zero
}

// Has reports whether k holds a value.
func (s *Store[K, V]) Has(k K) bool {
	_, ok := s.data[k]
	return ok
}

// Set writes v under k and records how to undo it.
func (s *Store[K, V]) Set(ctx context.Context, k K, v V) {
	prev, existed := s.data[k]
	s.host.record(ctx, func() {
		if existed {
			s.data[k] = prev
		} else {
			delete(s.data, k)
		}
	})
	s.data[k] = v
}

// Delete removes k and records how to undo it.
func (s *Store[K, V]) Delete(ctx context.Context, k K) {
	prev, existed := s.data[k]
	if !existed {
		return
	}
	s.host.record(ctx, func() { s.data[k] = prev })
	delete(s.data, k)
}

// Keys returns the stored keys in no particular order.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored keys.
func (s *Store[K, V]) Len() int {
	return len(s.data)
}

// Value is a single journaled slot.
type Value[T any] struct {
	host *Host
	v    T
}

func NewValue[T any](host *Host, initial T) *Value[T] {
	return &Value[T]{host: host, v: initial}
}

func (v *Value[T]) Get() T {
	return v.v
}

func (v *Value[T]) Set(ctx context.Context, next T) {
	prev := v.v
	v.host.record(ctx, func() { v.v = prev })
	v.v = next
}
