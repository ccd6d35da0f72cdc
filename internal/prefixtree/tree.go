// Package prefixtree wraps go-radix with typed values for the vault's
// path index. Vault paths share long common prefixes (agents/...,
// sessions/<agent>/...), which a radix tree stores compactly and walks
// in sorted order.
package prefixtree

import (
	"github.com/armon/go-radix"
)

// Tree is a radix tree mapping string keys to values of type V.
// The zero value is not usable; construct with New.
type Tree[V any] struct {
	tree *radix.Tree
}

// New creates an empty tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{tree: radix.New()}
}

// Put stores value under key, replacing any previous value.
func (t *Tree[V]) Put(key string, value V) {
	t.tree.Insert(key, value)
}

// Get returns the value stored under key.
func (t *Tree[V]) Get(key string) (V, bool) {
	raw, ok := t.tree.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return raw.(V), true
}

// Delete removes key, reporting whether it was present.
func (t *Tree[V]) Delete(key string) bool {
	_, deleted := t.tree.Delete(key)
	return deleted
}

// Len returns the number of stored keys.
func (t *Tree[V]) Len() int {
	return t.tree.Len()
}

// WalkPrefix visits every key under prefix in sorted order. The walk
// stops early when fn returns false.
func (t *Tree[V]) WalkPrefix(prefix string, fn func(key string, value V) bool) {
	t.tree.WalkPrefix(prefix, func(key string, raw interface{}) bool {
		return !fn(key, raw.(V))
	})
}
