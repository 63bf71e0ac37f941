// Package lru provides a caching [ragchat.HistoryReader] decorator backed by
// an expirable LRU cache.
package lru

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 1000
	DefaultTTL  = 5 * time.Minute
)

// Interface compliance check.
var _ ragchat.HistoryReader = (*HistoryCache)(nil)

// HistoryCache caches conversation histories by conversation identifier.
// Failed loads are not cached. Cached slices are copied on the way in and
// out, so callers may modify what they receive.
type HistoryCache struct {
	reader ragchat.HistoryReader
	cache  *expirable.LRU[string, []ragchat.Message]
	logger *slog.Logger

	size int
	ttl  time.Duration
}

// Option configures a [HistoryCache].
type Option func(*HistoryCache)

// WithSize sets the maximum number of cached conversations.
func WithSize(n int) Option {
	return func(c *HistoryCache) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithTTL sets how long a cached history stays valid.
func WithTTL(d time.Duration) Option {
	return func(c *HistoryCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *HistoryCache) { c.logger = l }
}

// New wraps reader with a cache.
func New(reader ragchat.HistoryReader, opts ...Option) *HistoryCache {
	c := &HistoryCache{
		reader: reader,
		size:   DefaultSize,
		ttl:    DefaultTTL,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.cache = expirable.NewLRU[string, []ragchat.Message](c.size, nil, c.ttl)
	return c
}

// History returns the cached history for conversationID, loading it from
// the wrapped reader on a miss.
func (c *HistoryCache) History(ctx context.Context, conversationID string) ([]ragchat.Message, error) {
	if msgs, ok := c.cache.Get(conversationID); ok {
		c.logger.Debug("history cache hit", "conversation_id", conversationID)
		return cloneMessages(msgs), nil
	}
	msgs, err := c.reader.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(conversationID, cloneMessages(msgs))
	return msgs, nil
}

// Invalidate drops the cached history for conversationID.
func (c *HistoryCache) Invalidate(conversationID string) {
	c.cache.Remove(conversationID)
}

// Purge drops every cached history.
func (c *HistoryCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached histories.
func (c *HistoryCache) Len() int {
	return c.cache.Len()
}

// Observer returns a [ragchat.Observer] that invalidates a conversation's
// cached history whenever an answer in it ends, since the backend has then
// stored new messages.
func (c *HistoryCache) Observer() ragchat.Observer {
	return func(ch ragchat.Change) {
		if ch.Terminal() && ch.ConversationID != "" {
			c.Invalidate(ch.ConversationID)
		}
	}
}

func cloneMessages(msgs []ragchat.Message) []ragchat.Message {
	if msgs == nil {
		return nil
	}
	out := make([]ragchat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
