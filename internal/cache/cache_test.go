// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/teams-export/internal/model"
)

func sampleChats() []model.Conversation {
	return []model.Conversation{
		{
			ID:    "chat-1",
			Type:  model.ChatGroup,
			Topic: "Team Sync",
			Members: []model.Participant{
				{DisplayName: "Alice", Email: "alice@example.com"},
			},
			LastActivity: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := New(t.TempDir(), time.Hour)

	_, ok := c.Get("user-1")
	assert.False(t, ok, "empty cache must miss")

	c.Put("user-1", sampleChats())

	chats, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, sampleChats(), chats)
}

func TestCacheMissForOtherUser(t *testing.T) {
	c := New(t.TempDir(), time.Hour)
	c.Put("user-1", sampleChats())

	_, ok := c.Get("user-2")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New(t.TempDir(), time.Hour)
	c.Put("user-1", sampleChats())

	// Advance the clock past the TTL.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := c.Get("user-1")
	assert.False(t, ok, "expired cache must miss")
}

func TestCacheCorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "chats_cache.json"), []byte("{{{not json"), 0600))

	_, ok := c.Get("user-1")
	assert.False(t, ok)

	// And the cache must recover on the next Put.
	c.Put("user-1", sampleChats())
	_, ok = c.Get("user-1")
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := New(t.TempDir(), time.Hour)
	c.Put("user-1", sampleChats())
	c.Clear()

	_, ok := c.Get("user-1")
	assert.False(t, ok)

	// Clearing an already-clear cache is fine.
	c.Clear()
}
