package signatures

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruCache bounds an inner Resolver's results the way go-ethereum
// bounds its own ABI/trie caches with golang-lru/v2, rather than an
// unbounded map, per spec.md §9 ("Global mutable signature cache").
type lruCache struct {
	inner     Resolver
	functions *lru.Cache[[4]byte, []Signature]
	events    *lru.Cache[[32]byte, []Signature]
	errors    *lru.Cache[[4]byte, []Signature]
}

// NewLRUCache wraps resolver with a bounded, in-process cache of size
// entries per selector/topic kind. It is the injectable capability
// spec.md §9's Design Notes call for: the core only ever sees the
// Resolver interface, never this cache's internals.
func NewLRUCache(resolver Resolver, size int) Resolver {
	functions, err := lru.New[[4]byte, []Signature](size)
	if err != nil {
		panic(err)
	}
	events, err := lru.New[[32]byte, []Signature](size)
	if err != nil {
		panic(err)
	}
	errs, err := lru.New[[4]byte, []Signature](size)
	if err != nil {
		panic(err)
	}
	return &lruCache{inner: resolver, functions: functions, events: events, errors: errs}
}

func (c *lruCache) ResolveFunction(ctx context.Context, selector [4]byte) ([]Signature, error) {
	if v, ok := c.functions.Get(selector); ok {
		return v, nil
	}
	v, err := c.inner.ResolveFunction(ctx, selector)
	if err != nil {
		return nil, err
	}
	c.functions.Add(selector, v)
	return v, nil
}

func (c *lruCache) ResolveEvent(ctx context.Context, topic0 [32]byte) ([]Signature, error) {
	if v, ok := c.events.Get(topic0); ok {
		return v, nil
	}
	v, err := c.inner.ResolveEvent(ctx, topic0)
	if err != nil {
		return nil, err
	}
	c.events.Add(topic0, v)
	return v, nil
}

func (c *lruCache) ResolveError(ctx context.Context, selector [4]byte) ([]Signature, error) {
	if v, ok := c.errors.Get(selector); ok {
		return v, nil
	}
	v, err := c.inner.ResolveError(ctx, selector)
	if err != nil {
		return nil, err
	}
	c.errors.Add(selector, v)
	return v, nil
}
