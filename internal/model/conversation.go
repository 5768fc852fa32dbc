// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/teams-export/internal/util"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// Chat type tags as the API reports them.
const (
	ChatOneOnOne = "oneOnOne"
	ChatGroup    = "group"
	ChatMeeting  = "meeting"
)

// Selection errors for name/participant matching.
var (
	// ErrChatNotFound indicates no chat matched the requested identifiers.
	ErrChatNotFound = errors.New("no chat matches the provided identifiers")

	// ErrChatAmbiguous indicates more than one chat matched.
	ErrChatAmbiguous = errors.New("multiple chats matched the request")
)

// Participant is a chat member, reduced to the two fields used for display
// and search matching. Either may be empty.
type Participant struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Label returns the participant's preferred display label.
func (p Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Conversation is a normalized chat thread. Never mutated after transform;
// the cache round-trips it through JSON unchanged.
type Conversation struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Topic        string        `json:"topic"`
	Members      []Participant `json:"members"`
	LastActivity time.Time     `json:"last_activity"`
}

// ConversationFromRecord normalizes a raw chat record. The last-activity
// timestamp prefers the last message preview's creation time over the chat's
// coarser lastUpdatedDateTime: renames and membership changes bump the
// latter without any conversation activity.
func ConversationFromRecord(rec map[string]any) Conversation {
	topic := recordString(rec, "topic")
	if topic == "" {
		topic = recordString(rec, "displayName")
	}

	conv := Conversation{
		ID:    recordString(rec, "id"),
		Type:  recordString(rec, "chatType"),
		Topic: topic,
	}

	for _, m := range recordSlice(rec, "members") {
		conv.Members = append(conv.Members, Participant{
			DisplayName: recordString(m, "displayName"),
			Email:       recordString(m, "email"),
		})
	}

	if ts := recordTime(recordMap(rec, "lastMessagePreview"), "createdDateTime"); !ts.IsZero() {
		conv.LastActivity = ts
	} else {
		conv.LastActivity = recordTime(rec, "lastUpdatedDateTime")
	}

	return conv
}

// Title derives a display title: the topic, else the joined participant
// labels, else the raw id.
func (c Conversation) Title() string {
	if c.Topic != "" {
		return c.Topic
	}
	if line := c.ParticipantsLine(); line != "" {
		return line
	}
	return c.ID
}

// ParticipantsLine joins the participant labels for display.
func (c Conversation) ParticipantsLine() string {
	labels := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if l := m.Label(); l != "" {
			labels = append(labels, l)
		}
	}
	return strings.Join(labels, ", ")
}

// TypeLabel returns a human-readable chat type.
func (c Conversation) TypeLabel() string {
	switch c.Type {
	case ChatOneOnOne:
		return "1:1"
	case ChatGroup:
		return "Group"
	case ChatMeeting:
		return "Meeting"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(c.Type[:1]) + c.Type[1:]
}

// SummaryLine formats a fixed-width line for the interactive chat menu:
// type, title, last activity. Width-aware so CJK topics stay aligned.
func (c Conversation) SummaryLine() string {
	activity := "N/A"
	if !c.LastActivity.IsZero() {
		activity = c.LastActivity.UTC().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s %s %s",
		util.PadWidth(c.TypeLabel(), 8),
		util.PadWidth(c.Title(), 50),
		activity,
	)
}

// SortByActivity orders conversations most-recently-active first, for menu
// display and cache storage.
func SortByActivity(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
}

// =============================================================================
// SELECTION
// =============================================================================

// matchLabels returns every normalized label a chat can be found by:
// member display names and emails.
func (c Conversation) matchLabels() []string {
	labels := make([]string, 0, len(c.Members)*2)
	for _, m := range c.Members {
		if m.DisplayName != "" {
			labels = append(labels, util.NormalizeSpace(m.DisplayName))
		}
		if m.Email != "" {
			labels = append(labels, util.NormalizeSpace(m.Email))
		}
	}
	return labels
}

// Choose selects exactly one conversation by participant label or chat
// name (whitespace- and case-insensitive exact match). No match and
// multiple matches are distinct errors; the ambiguous error lists the
// candidate ids so the caller can narrow the query.
func Choose(convs []Conversation, participant, chatName string) (Conversation, error) {
	nameNorm := util.NormalizeSpace(chatName)
	participantNorm := util.NormalizeSpace(participant)

	var matches []Conversation
	for _, conv := range convs {
		if nameNorm != "" && util.NormalizeSpace(conv.Title()) == nameNorm {
			matches = append(matches, conv)
			continue
		}
		if participantNorm != "" {
			for _, label := range conv.matchLabels() {
				if label == participantNorm {
					matches = append(matches, conv)
					break
				}
			}
		}
	}

	switch len(matches) {
	case 0:
		return Conversation{}, ErrChatNotFound
	case 1:
		return matches[0], nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return Conversation{}, fmt.Errorf("%w: %s", ErrChatAmbiguous, strings.Join(ids, ", "))
}

// FilterByQuery returns the conversations whose title, member names, or
// member emails contain the query (case-insensitive substring). An empty
// query matches everything.
func FilterByQuery(convs []Conversation, query string) []Conversation {
	if query == "" {
		return convs
	}
	q := strings.ToLower(query)

	var matches []Conversation
	for _, conv := range convs {
		if strings.Contains(strings.ToLower(conv.Title()), q) {
			matches = append(matches, conv)
			continue
		}
		for _, m := range conv.Members {
			if strings.Contains(strings.ToLower(m.DisplayName), q) ||
				strings.Contains(strings.ToLower(m.Email), q) {
				matches = append(matches, conv)
				break
			}
		}
	}
	return matches
}
