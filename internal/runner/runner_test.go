// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/teams-export/internal/graph"
	"github.com/jeranaias/teams-export/internal/model"
)

var (
	windowStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC)
)

// messagePage builds a Graph-shaped message list response.
func messagePage(msgs ...map[string]any) map[string]any {
	values := make([]any, len(msgs))
	for i, m := range msgs {
		values[i] = m
	}
	return map[string]any{"value": values}
}

func rawMsg(id, created, content string) map[string]any {
	return map[string]any{
		"id":              id,
		"createdDateTime": created,
		"messageType":     "message",
		"from": map[string]any{
			"user": map[string]any{"displayName": "Alice", "userPrincipalName": "alice@example.com"},
		},
		"body": map[string]any{"contentType": "html", "content": content},
	}
}

func newTestService(t *testing.T, handler http.Handler, opts Options) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := graph.NewClient("test-token").WithBaseURL(server.URL).WithMaxAttempts(1)
	return New(client, opts)
}

func teamSync() model.Conversation {
	return model.Conversation{
		ID:    "chat-1",
		Type:  model.ChatGroup,
		Topic: "Team Sync",
		Members: []model.Participant{
			{DisplayName: "Alice", Email: "alice@example.com"},
			{DisplayName: "Bob"},
		},
	}
}

func TestExportConversation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/chats/chat-1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(messagePage(
			rawMsg("in-window", "2025-01-01T09:00:00Z", "<p>hello</p>"),
			rawMsg("too-old", "2024-12-30T09:00:00Z", "<p>old</p>"),
		))
	})

	outputDir := t.TempDir()
	s := newTestService(t, handler, Options{
		OutputDir: outputDir,
		Format:    "json",
		Start:     windowStart,
		End:       windowEnd,
	})

	res := s.ExportConversation(context.Background(), teamSync())
	require.NoError(t, res.Err)

	assert.Equal(t, "Team Sync", res.Title)
	assert.Equal(t, 1, res.MessageCount)
	assert.Equal(t, filepath.Join(outputDir, "team_sync_2025-01-01.json"), res.OutputPath)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)

	var msgs []model.Message
	require.NoError(t, json.Unmarshal(data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "in-window", msgs[0].ID)
}

func TestExportConversationNoID(t *testing.T) {
	s := New(graph.NewClient("t"), Options{Format: "json", Start: windowStart, End: windowEnd})
	res := s.ExportConversation(context.Background(), model.Conversation{})
	assert.Error(t, res.Err)
}

func TestExportConversationBadFormat(t *testing.T) {
	s := New(graph.NewClient("t"), Options{Format: "yaml", Start: windowStart, End: windowEnd})
	res := s.ExportConversation(context.Background(), teamSync())
	assert.ErrorContains(t, res.Err, "unsupported export format")
}

func TestExportCollidingOutputsGetSuffixes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagePage(rawMsg("m", "2025-01-01T09:00:00Z", "<p>x</p>")))
	})

	s := newTestService(t, handler, Options{
		OutputDir: t.TempDir(),
		Format:    "json",
		Start:     windowStart,
		End:       windowEnd,
	})

	first := s.ExportConversation(context.Background(), teamSync())
	second := s.ExportConversation(context.Background(), teamSync())
	require.NoError(t, first.Err)
	require.NoError(t, second.Err)

	assert.NotEqual(t, first.OutputPath, second.OutputPath)
	assert.Contains(t, second.OutputPath, "team_sync_2025-01-01_1.json")
}

func TestExportAllIsolatesFailures(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/me/chats/broken/messages" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":"NotFound","message":"no such chat"}}`)
			return
		}
		json.NewEncoder(w).Encode(messagePage(rawMsg("m", "2025-01-01T09:00:00Z", "<p>x</p>")))
	})

	s := newTestService(t, handler, Options{
		OutputDir: t.TempDir(),
		Format:    "json",
		Start:     windowStart,
		End:       windowEnd,
	})

	convs := []model.Conversation{
		{ID: "broken", Topic: "Broken"},
		teamSync(),
	}
	results := s.ExportAll(context.Background(), convs)
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)

	exported, messages := Summarize(results)
	assert.Equal(t, 1, exported)
	assert.Equal(t, 1, messages)
}

func TestExportAllBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()

		json.NewEncoder(w).Encode(messagePage(rawMsg("m", "2025-01-01T09:00:00Z", "<p>x</p>")))
	})

	s := newTestService(t, handler, Options{
		OutputDir: t.TempDir(),
		Format:    "json",
		Start:     windowStart,
		End:       windowEnd,
	})

	convs := make([]model.Conversation, 9)
	for i := range convs {
		convs[i] = model.Conversation{ID: fmt.Sprintf("chat-%d", i), Topic: fmt.Sprintf("Chat %d", i)}
	}

	results := s.ExportAll(context.Background(), convs)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, DefaultConcurrency)
}

func TestExportConversationHTMLTheme(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagePage(rawMsg("m", "2025-01-01T09:00:00Z", "<p>x</p>")))
	})

	s := newTestService(t, handler, Options{
		OutputDir: t.TempDir(),
		Format:    "html",
		Theme:     "dark",
		Start:     windowStart,
		End:       windowEnd,
	})

	res := s.ExportConversation(context.Background(), teamSync())
	require.NoError(t, res.Err)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<body class="dark-theme">`)
}

func TestExportConversationProgress(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagePage(
			rawMsg("a", "2025-01-01T09:00:00Z", "<p>1</p>"),
			rawMsg("b", "2025-01-01T10:00:00Z", "<p>2</p>"),
		))
	})

	var gotTitle string
	var gotTotal int
	s := newTestService(t, handler, Options{
		OutputDir: t.TempDir(),
		Format:    "markdown",
		Start:     windowStart,
		End:       windowEnd,
		Progress: func(title string, fetched int) {
			gotTitle, gotTotal = title, fetched
		},
	})

	res := s.ExportConversation(context.Background(), teamSync())
	require.NoError(t, res.Err)
	assert.Equal(t, "Team Sync", gotTitle)
	assert.Equal(t, 2, gotTotal)
}
