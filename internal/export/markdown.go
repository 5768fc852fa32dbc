// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/teams-export/internal/model"
)

// MarkdownExporter renders the conversation as a readable markdown
// transcript: a header block, then one blockquoted section per message.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", doc.Title)
	if len(doc.Participants) > 0 {
		fmt.Fprintf(&b, "**Participants:** %s\n\n", strings.Join(doc.Participants, ", "))
	}
	if doc.DateRange != "" {
		fmt.Fprintf(&b, "**Date Range:** %s\n\n", doc.DateRange)
	}
	b.WriteString("---\n\n")

	if len(doc.Messages) == 0 {
		b.WriteString("*No messages found in the specified date range.*\n")
		return []byte(b.String()), nil
	}

	fmt.Fprintf(&b, "### Messages (%d total)\n\n", len(doc.Messages))
	for _, msg := range doc.Messages {
		e.writeMessage(&b, msg, doc.Attachments)
	}
	return []byte(b.String()), nil
}

// writeMessage renders one message: a sender/timestamp heading, the
// blockquoted body, then attachment links.
func (e *MarkdownExporter) writeMessage(b *strings.Builder, msg model.Message, attachments *AttachmentMap) {
	sender := msg.Sender
	if sender == "" {
		sender = "Unknown"
	}
	timestamp := "No timestamp"
	if ts, ok := msg.Timestamp(); ok {
		timestamp = ts.UTC().Format("2006-01-02 15:04 UTC")
	}

	reactions := ""
	if len(msg.Reactions) > 0 {
		types := make([]string, len(msg.Reactions))
		for i, r := range msg.Reactions {
			types[i] = r.Type
		}
		reactions = fmt.Sprintf(" [%s]", strings.Join(types, ", "))
	}

	fmt.Fprintf(b, "**%s** — *%s*%s\n\n", sender, timestamp, reactions)

	attachmentLines := e.attachmentLines(msg, attachments)

	content := HTMLToText(msg.Content)
	if content == "" {
		switch {
		case msg.IsSystemEvent():
			content = "[System event]"
		case len(attachmentLines) == 0:
			content = "[No content]"
		}
	}
	if content != "" {
		for _, line := range strings.Split(content, "\n") {
			fmt.Fprintf(b, "> %s\n", line)
		}
		b.WriteString("\n")
	}

	if len(attachmentLines) > 0 {
		for _, line := range attachmentLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

// attachmentLines builds the links for a message's inline images and file
// attachments, preferring downloaded local paths over remote URLs.
func (e *MarkdownExporter) attachmentLines(msg model.Message, attachments *AttachmentMap) []string {
	var lines []string

	target := func(url string) string {
		if local, ok := attachments.Local(url); ok {
			return local
		}
		return url
	}

	for _, img := range ExtractInlineImages(msg.Content) {
		alt := img.Alt
		if alt == "" {
			alt = "Image"
		}
		lines = append(lines, fmt.Sprintf("![%s](%s)", alt, target(img.Src)))
	}

	for _, a := range msg.Attachments {
		name := a.Name
		if name == "" {
			name = "Attachment"
		}
		switch {
		case a.URL == "":
			lines = append(lines, fmt.Sprintf("📎 %s (no URL)", name))
		case a.IsImage():
			lines = append(lines, fmt.Sprintf("![%s](%s)", name, target(a.URL)))
		default:
			lines = append(lines, fmt.Sprintf("📎 [%s](%s)", name, target(a.URL)))
		}
	}
	return lines
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

func (e *MarkdownExporter) SupportsAttachments() bool { return true }
