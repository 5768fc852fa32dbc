// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the normalized conversation and message shapes the
// exporter works with, plus the transforms from raw Graph API records.
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/teams-export/internal/dates"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Reaction is a single reaction on a message, reduced to its type tag
// ("like", "heart", ...).
type Reaction struct {
	Type string `json:"reaction_type"`
}

// Mention is an @-mention within a message body.
type Mention struct {
	Text string `json:"text"`
}

// Attachment is a file or card attached to a message. URL is resolved from
// the record's candidate fields at transform time; it may be empty when the
// API supplied none of them.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// imageExtensions is the filename whitelist used when an attachment carries
// no content type.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp"}

// IsImage classifies the attachment by content-type prefix, falling back to
// the filename extension whitelist.
func (a Attachment) IsImage() bool {
	if a.ContentType != "" {
		return strings.HasPrefix(a.ContentType, "image/")
	}
	name := strings.ToLower(a.Name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Message is a normalized chat message. Zero times mean the API omitted the
// field. The message type tag distinguishes ordinary messages ("message")
// from system events ("systemEventMessage").
type Message struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	SenderEmail string       `json:"sender_email"`
	CreatedAt   time.Time    `json:"created_at"`
	ModifiedAt  time.Time    `json:"modified_at"`
	EditedAt    time.Time    `json:"edited_at"`
	Type        string       `json:"type"`
	Subject     string       `json:"subject"`
	ContentType string       `json:"content_type"`
	Content     string       `json:"content"`
	Reactions   []Reaction   `json:"reactions"`
	Mentions    []Mention    `json:"mentions"`
	Attachments []Attachment `json:"attachments"`
}

// IsSystemEvent reports whether this is a system event (member added, call
// ended, ...) rather than a user message.
func (m Message) IsSystemEvent() bool {
	return m.Type == "systemEventMessage"
}

// Timestamp resolves the message's effective timestamp: creation time, else
// last-modified, else last-edited. The second return is false when none of
// the three was present; such messages are excluded from range-filtered
// output.
func (m Message) Timestamp() (time.Time, bool) {
	switch {
	case !m.CreatedAt.IsZero():
		return m.CreatedAt, true
	case !m.ModifiedAt.IsZero():
		return m.ModifiedAt, true
	case !m.EditedAt.IsZero():
		return m.EditedAt, true
	}
	return time.Time{}, false
}

// =============================================================================
// RECORD TRANSFORM
// =============================================================================

// recordString extracts a string field, tolerating absence and non-string
// values.
func recordString(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

// recordMap extracts a nested object, returning an empty map when the field
// is missing or not an object.
func recordMap(rec map[string]any, key string) map[string]any {
	if v, ok := rec[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// recordSlice extracts a nested array of objects.
func recordSlice(rec map[string]any, key string) []map[string]any {
	raw, ok := rec[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// recordTime parses a Graph timestamp field, zero when absent or malformed.
func recordTime(rec map[string]any, key string) time.Time {
	t, _ := dates.ParseGraphTime(recordString(rec, key))
	return t
}

// attachmentURL resolves the attachment URL from the candidate fields in
// priority order; first non-empty wins.
func attachmentURL(rec map[string]any) string {
	for _, key := range []string{"contentUrl", "content", "url", "thumbnailUrl"} {
		if u := recordString(rec, key); u != "" {
			return u
		}
	}
	return recordString(recordMap(rec, "hostedContents"), "contentUrl")
}

// MessageFromRecord normalizes a raw chat message record. Missing nested
// objects (sender info, body, attachment arrays) become empty defaults; the
// transform never fails.
func MessageFromRecord(rec map[string]any) Message {
	from := recordMap(rec, "from")
	user := recordMap(from, "user")
	app := recordMap(from, "application")
	body := recordMap(rec, "body")

	sender := recordString(user, "displayName")
	if sender == "" {
		sender = recordString(app, "displayName")
	}
	email := recordString(user, "userPrincipalName")
	if email == "" {
		email = recordString(user, "email")
	}

	msg := Message{
		ID:          recordString(rec, "id"),
		Sender:      sender,
		SenderEmail: email,
		CreatedAt:   recordTime(rec, "createdDateTime"),
		ModifiedAt:  recordTime(rec, "lastModifiedDateTime"),
		EditedAt:    recordTime(rec, "lastEditedDateTime"),
		Type:        recordString(rec, "messageType"),
		Subject:     recordString(rec, "subject"),
		ContentType: recordString(body, "contentType"),
		Content:     recordString(body, "content"),
	}

	for _, r := range recordSlice(rec, "reactions") {
		if t := recordString(r, "reactionType"); t != "" {
			msg.Reactions = append(msg.Reactions, Reaction{Type: t})
		}
	}
	for _, m := range recordSlice(rec, "mentions") {
		if t := recordString(m, "mentionText"); t != "" {
			msg.Mentions = append(msg.Mentions, Mention{Text: t})
		}
	}
	for _, a := range recordSlice(rec, "attachments") {
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:        recordString(a, "name"),
			ContentType: recordString(a, "contentType"),
			URL:         attachmentURL(a),
		})
	}

	return msg
}

// =============================================================================
// RANGE FILTER AND SORT
// =============================================================================

// FilterRange keeps messages whose resolved timestamp falls within the
// inclusive [start, end] window. Messages without a resolvable timestamp
// are dropped.
func FilterRange(msgs []Message, start, end time.Time) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		ts, ok := m.Timestamp()
		if !ok {
			continue
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SortByTimestamp orders messages oldest-first. The API returns newest
// first; exports read top to bottom.
func SortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		ti, _ := msgs[i].Timestamp()
		tj, _ := msgs[j].Timestamp()
		return ti.Before(tj)
	})
}

// OlderThan builds a pagination stop-condition: true once a raw record's
// creation (or last-modified) timestamp falls strictly before start. With
// the API's default newest-first ordering this stops fetching history the
// window can no longer reach. Records without parsable timestamps never
// trigger the stop, so they cannot cut off in-window messages behind them.
func OlderThan(start time.Time) func(map[string]any) bool {
	return func(rec map[string]any) bool {
		ts, ok := dates.ParseGraphTime(recordString(rec, "createdDateTime"))
		if !ok {
			ts, ok = dates.ParseGraphTime(recordString(rec, "lastModifiedDateTime"))
		}
		return ok && ts.Before(start)
	}
}
