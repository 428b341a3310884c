package provider

import (
	"container/list"
	"context"
	"sync"

	"quicktranslator/pkg/logger"
)

type cacheKey struct {
	source, target, text string
}

type cacheEntry struct {
	key   cacheKey
	value string
}

// Cached remembers successful translations of the wrapped provider. The least
// recently used entry is evicted once maxEntries is reached. Failures are
// never cached.
type Cached struct {
	wrapped    Provider
	maxEntries int

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[cacheKey]*list.Element

	logger *logger.Logger
}

// NewCached wraps p with an in-memory cache of at most maxEntries entries.
func NewCached(p Provider, maxEntries int, log *logger.Logger) *Cached {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cached{
		wrapped:    p,
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[cacheKey]*list.Element),
		logger:     log.Named("cache"),
	}
}

func (c *Cached) Name() string { return "cached(" + c.wrapped.Name() + ")" }

// Len returns the number of cached translations.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cached) Translate(ctx context.Context, text, source, target string) (string, error) {
	key := cacheKey{source: source, target: target, text: text}

	if v, ok := c.get(key); ok {
		c.logger.Tracef("hit %s|%s: %s", source, target, truncateForLog(text, 80))
		return v, nil
	}

	translated, err := c.wrapped.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	c.put(key, translated)
	return translated, nil
}

func (c *Cached) get(key cacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *Cached) put(key cacheKey, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}
