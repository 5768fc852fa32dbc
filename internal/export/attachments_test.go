// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/teams-export/internal/model"
)

// fakeDownloader serves canned responses and counts calls per URL.
type fakeDownloader struct {
	responses map[string]fakeResponse
	calls     map[string]int
}

type fakeResponse struct {
	body        string
	contentType string
	err         error
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		responses: make(map[string]fakeResponse),
		calls:     make(map[string]int),
	}
}

func (d *fakeDownloader) Download(_ context.Context, url string) (io.ReadCloser, string, error) {
	d.calls[url]++
	resp, ok := d.responses[url]
	if !ok {
		return nil, "", errors.New("unexpected url: " + url)
	}
	if resp.err != nil {
		return nil, "", resp.err
	}
	return io.NopCloser(strings.NewReader(resp.body)), resp.contentType, nil
}

func attachmentMessage(urls ...string) model.Message {
	msg := model.Message{
		ID:        "m",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range urls {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			Name: "file.bin",
			URL:  u,
		})
	}
	return msg
}

func TestResolveDownloadsEachURLOnce(t *testing.T) {
	d := newFakeDownloader()
	d.responses["https://x/shared.png"] = fakeResponse{body: "png-bytes", contentType: "image/png"}

	// The same URL referenced from three messages, both as an inline image
	// and as an attachment record.
	msgs := []model.Message{
		{
			ID:          "a",
			ContentType: "html",
			Content:     `<img src="https://x/shared.png" alt="pic">`,
		},
		attachmentMessage("https://x/shared.png"),
		attachmentMessage("https://x/shared.png"),
	}

	r := NewResolver(d, filepath.Join(t.TempDir(), "chat_files"))
	resolved := r.Resolve(context.Background(), msgs)

	assert.Equal(t, 1, d.calls["https://x/shared.png"], "one download per distinct URL")
	require.Equal(t, 1, resolved.Len())

	local, ok := resolved.Local("https://x/shared.png")
	require.True(t, ok)
	assert.Equal(t, "chat_files/pic.png", local)
}

func TestResolveWritesFiles(t *testing.T) {
	d := newFakeDownloader()
	d.responses["https://x/report"] = fakeResponse{body: "pdf-bytes", contentType: "application/pdf"}

	dir := filepath.Join(t.TempDir(), "chat_files")
	msg := model.Message{
		ID: "m",
		Attachments: []model.Attachment{
			{Name: "Q1 Report.pdf", ContentType: "application/pdf", URL: "https://x/report"},
		},
	}

	resolved := NewResolver(d, dir).Resolve(context.Background(), []model.Message{msg})

	local, ok := resolved.Local("https://x/report")
	require.True(t, ok)
	assert.Equal(t, "chat_files/q1_report.pdf", local)

	data, err := os.ReadFile(filepath.Join(dir, "q1_report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestResolveCollidingNamesGetSuffixes(t *testing.T) {
	d := newFakeDownloader()
	d.responses["https://x/1"] = fakeResponse{body: "one", contentType: "image/png"}
	d.responses["https://x/2"] = fakeResponse{body: "two", contentType: "image/png"}

	dir := filepath.Join(t.TempDir(), "chat_files")
	msg := model.Message{
		ID: "m",
		Attachments: []model.Attachment{
			{Name: "screenshot.png", ContentType: "image/png", URL: "https://x/1"},
			{Name: "screenshot.png", ContentType: "image/png", URL: "https://x/2"},
		},
	}

	resolved := NewResolver(d, dir).Resolve(context.Background(), []model.Message{msg})

	first, _ := resolved.Local("https://x/1")
	second, _ := resolved.Local("https://x/2")
	assert.Equal(t, "chat_files/screenshot.png", first)
	assert.Equal(t, "chat_files/screenshot_1.png", second)

	// Both files exist with distinct contents.
	one, err := os.ReadFile(filepath.Join(dir, "screenshot.png"))
	require.NoError(t, err)
	two, err := os.ReadFile(filepath.Join(dir, "screenshot_1.png"))
	require.NoError(t, err)
	assert.NotEqual(t, one, two)
}

func TestResolveFailuresAreNonFatal(t *testing.T) {
	d := newFakeDownloader()
	d.responses["https://x/bad"] = fakeResponse{err: errors.New("boom")}
	d.responses["https://x/good"] = fakeResponse{body: "ok", contentType: "text/plain"}

	msg := model.Message{
		ID: "m",
		Attachments: []model.Attachment{
			{Name: "bad.txt", URL: "https://x/bad"},
			{Name: "good.txt", URL: "https://x/good"},
		},
	}

	resolved := NewResolver(d, filepath.Join(t.TempDir(), "f")).Resolve(context.Background(), []model.Message{msg})

	_, ok := resolved.Local("https://x/bad")
	assert.False(t, ok)
	_, ok = resolved.Local("https://x/good")
	assert.True(t, ok)
}

func TestResolveNoRefsCreatesNoDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chat_files")
	resolved := NewResolver(newFakeDownloader(), dir).Resolve(context.Background(), []model.Message{
		{ID: "m", Content: "plain text, nothing attached"},
	})

	assert.Equal(t, 0, resolved.Len())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		isImage     bool
		want        string
	}{
		{"image/png", true, ".png"},
		{"image/jpeg; charset=binary", true, ".jpg"},
		{"application/pdf", false, ".pdf"},
		{"application/x-mystery", false, ".bin"},
		{"", true, ".png"},
		{"", false, ".bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionFor(tt.contentType, tt.isImage), tt.contentType)
	}
}

func TestBaseNameDerivation(t *testing.T) {
	// Attachment name wins, sanitized and stripped of its extension.
	assert.Equal(t, "q1_report", baseName(attachmentRef{name: "Q1 Report.pdf", url: "https://x/y/z.pdf"}))

	// No name: last URL path segment.
	assert.Equal(t, "diagram", baseName(attachmentRef{url: "https://x/files/diagram.png?token=abc"}))

	// Nothing usable: random fallback.
	name := baseName(attachmentRef{url: "https://x/"})
	assert.True(t, strings.HasPrefix(name, "attachment-"), name)
}

func TestAttachmentMapNilSafe(t *testing.T) {
	var m *AttachmentMap
	_, ok := m.Local("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.URLs())
}
