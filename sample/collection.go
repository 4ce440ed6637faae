package sample

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned when a key is added to a Collection twice.
var ErrDuplicateKey = errors.New("sample: duplicate key")

// Collection maps note names to buffers. Iteration follows insertion order
// so pipeline runs are deterministic; the order carries no other meaning.
type Collection struct {
	keys  []string
	items map[string]Buffer
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{items: make(map[string]Buffer)}
}

// Add inserts b under key. Keys are never reused within a collection.
func (c *Collection) Add(key string, b Buffer) error {
	if b == nil {
		return fmt.Errorf("sample: nil buffer for %q", key)
	}
	if _, ok := c.items[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	c.keys = append(c.keys, key)
	c.items[key] = b
	return nil
}

// Get returns the buffer stored under key.
func (c *Collection) Get(key string) (Buffer, bool) {
	b, ok := c.items[key]
	return b, ok
}

// Keys returns a copy of the keys in insertion order.
func (c *Collection) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Collection) Len() int { return len(c.keys) }

// Each calls fn for every entry in order and stops at the first error.
func (c *Collection) Each(fn func(key string, b Buffer) error) error {
	for _, k := range c.keys {
		if err := fn(k, c.items[k]); err != nil {
			return err
		}
	}
	return nil
}

// Map builds a new collection with the same keys from fn's results.
func (c *Collection) Map(fn func(key string, b Buffer) (Buffer, error)) (*Collection, error) {
	out := NewCollection()
	for _, k := range c.keys {
		nb, err := fn(k, c.items[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if err := out.Add(k, nb); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Layout returns the shared channel layout of the collection. ok is false
// for an empty collection or mixed layouts.
func (c *Collection) Layout() (Layout, bool) {
	if len(c.keys) == 0 {
		return LayoutMono, false
	}
	l := c.items[c.keys[0]].Layout()
	for _, k := range c.keys[1:] {
		if c.items[k].Layout() != l {
			return l, false
		}
	}
	return l, true
}
