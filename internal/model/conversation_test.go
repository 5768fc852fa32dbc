// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawChat() map[string]any {
	return map[string]any{
		"id":                  "chat-1",
		"chatType":            "group",
		"topic":               "Team Sync",
		"lastUpdatedDateTime": "2025-01-10T08:00:00Z",
		"lastMessagePreview": map[string]any{
			"createdDateTime": "2025-01-05T12:00:00Z",
		},
		"members": []any{
			map[string]any{"displayName": "Alice", "email": "alice@example.com"},
			map[string]any{"displayName": "Bob", "email": "bob@example.com"},
		},
	}
}

func TestConversationFromRecord(t *testing.T) {
	conv := ConversationFromRecord(rawChat())

	assert.Equal(t, "chat-1", conv.ID)
	assert.Equal(t, ChatGroup, conv.Type)
	assert.Equal(t, "Team Sync", conv.Topic)
	require.Len(t, conv.Members, 2)

	// Last message preview beats the coarser lastUpdatedDateTime.
	assert.Equal(t, time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC), conv.LastActivity)
}

func TestConversationLastActivityFallback(t *testing.T) {
	rec := rawChat()
	delete(rec, "lastMessagePreview")
	conv := ConversationFromRecord(rec)
	assert.Equal(t, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), conv.LastActivity)
}

func TestConversationTitleDerivation(t *testing.T) {
	conv := ConversationFromRecord(rawChat())
	assert.Equal(t, "Team Sync", conv.Title())

	conv.Topic = ""
	assert.Equal(t, "Alice, Bob", conv.Title())

	conv.Members = nil
	assert.Equal(t, "chat-1", conv.Title())
}

func TestConversationTypeLabel(t *testing.T) {
	assert.Equal(t, "1:1", Conversation{Type: ChatOneOnOne}.TypeLabel())
	assert.Equal(t, "Group", Conversation{Type: ChatGroup}.TypeLabel())
	assert.Equal(t, "Meeting", Conversation{Type: ChatMeeting}.TypeLabel())
	assert.Equal(t, "Unknown", Conversation{}.TypeLabel())
	assert.Equal(t, "Channel", Conversation{Type: "channel"}.TypeLabel())
}

func TestChoose(t *testing.T) {
	convs := []Conversation{
		ConversationFromRecord(rawChat()),
		{
			ID:   "chat-2",
			Type: ChatOneOnOne,
			Members: []Participant{
				{DisplayName: "Carol Jones", Email: "carol@example.com"},
			},
		},
	}

	// By chat name, case- and whitespace-insensitive.
	conv, err := Choose(convs, "", "  team   sync ")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", conv.ID)

	// By participant email.
	conv, err = Choose(convs, "CAROL@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", conv.ID)

	// By participant display name.
	conv, err = Choose(convs, "carol jones", "")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", conv.ID)

	_, err = Choose(convs, "nobody", "")
	assert.ErrorIs(t, err, ErrChatNotFound)

	// Both chats contain a member matching "alice" and "bob"; force
	// ambiguity with a shared member.
	convs[1].Members = append(convs[1].Members, Participant{DisplayName: "Alice"})
	_, err = Choose(convs, "alice", "")
	assert.ErrorIs(t, err, ErrChatAmbiguous)
	assert.Contains(t, err.Error(), "chat-1")
	assert.Contains(t, err.Error(), "chat-2")
}

func TestFilterByQuery(t *testing.T) {
	convs := []Conversation{
		ConversationFromRecord(rawChat()),
		{ID: "chat-2", Members: []Participant{{DisplayName: "Carol", Email: "carol@other.example.com"}}},
	}

	assert.Len(t, FilterByQuery(convs, ""), 2)
	assert.Len(t, FilterByQuery(convs, "sync"), 1)
	assert.Len(t, FilterByQuery(convs, "carol"), 1)
	assert.Len(t, FilterByQuery(convs, "example.com"), 2)
	assert.Empty(t, FilterByQuery(convs, "zzz"))
}

func TestSortByActivity(t *testing.T) {
	convs := []Conversation{
		{ID: "old", LastActivity: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", LastActivity: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "none"},
	}
	SortByActivity(convs)
	assert.Equal(t, "new", convs[0].ID)
	assert.Equal(t, "old", convs[1].ID)
	assert.Equal(t, "none", convs[2].ID)
}

func TestSummaryLine(t *testing.T) {
	conv := ConversationFromRecord(rawChat())
	line := conv.SummaryLine()
	assert.Contains(t, line, "Group")
	assert.Contains(t, line, "Team Sync")
	assert.Contains(t, line, "2025-01-05 12:00")
}
