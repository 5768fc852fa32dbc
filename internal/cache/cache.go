// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides a time-boxed local cache for the chat list, so
// repeated exports skip the expensive members-expanded listing call.
package cache

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/teams-export/internal/model"
	"github.com/jeranaias/teams-export/internal/util"
)

// DefaultTTL is how long a cached chat list stays fresh.
const DefaultTTL = 24 * time.Hour

// entry is the on-disk shape. The user id guards against serving one
// account's chat list to another.
type entry struct {
	UserID   string               `json:"user_id"`
	CachedAt time.Time            `json:"cached_at"`
	Chats    []model.Conversation `json:"chats"`
}

// ChatCache caches the normalized chat list in a single JSON file with a
// configurable TTL. Corrupt or missing files are cache misses, never
// errors: the cache is an optimization, not a source of truth.
type ChatCache struct {
	path string
	ttl  time.Duration
	mu   sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a chat cache stored under dir. A non-positive ttl selects
// DefaultTTL.
func New(dir string, ttl time.Duration) *ChatCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ChatCache{
		path: filepath.Join(dir, "chats_cache.json"),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the cached chat list for userID if present and fresh.
func (c *ChatCache) Get(userID string) ([]model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt cache file: treat as a miss, it will be rewritten.
		return nil, false
	}

	if e.UserID != userID {
		return nil, false
	}
	if c.now().Sub(e.CachedAt) > c.ttl {
		return nil, false
	}
	if len(e.Chats) == 0 {
		return nil, false
	}
	return e.Chats, true
}

// Put stores the chat list for userID. Write failures are logged and
// swallowed; a broken cache must never fail an export.
func (c *ChatCache) Put(userID string, chats []model.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(entry{
		UserID:   userID,
		CachedAt: c.now(),
		Chats:    chats,
	}, "", "  ")
	if err != nil {
		log.Printf("cache: marshal failed: %v", err)
		return
	}

	if err := util.AtomicWriteFile(c.path, data, 0600); err != nil {
		log.Printf("cache: write failed: %v", err)
	}
}

// Clear removes the cache file.
func (c *ChatCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		log.Printf("cache: clear failed: %v", err)
	}
}
