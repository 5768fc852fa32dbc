// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/teams-export/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a self-contained HTML document with embedded CSS,
// downloaded images inlined as base64 data URIs, and a copy-to-clipboard
// script. The file works standalone, no attachment directory needed once
// rendered.
type HTMLExporter struct {
	opts Options
}

func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	var sb strings.Builder

	theme := e.opts.Theme
	if theme != "dark" {
		theme = "light"
	}

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(doc.Title)))
	sb.WriteString(e.getCSS())
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString(e.renderHeader(doc))

	sb.WriteString("        <main class=\"conversation\" id=\"conversation\">\n")
	if len(doc.Messages) == 0 {
		sb.WriteString("            <p class=\"empty\">No messages found in the specified date range.</p>\n")
	}
	for _, msg := range doc.Messages {
		sb.WriteString(e.renderMessage(msg, doc.Attachments))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("    </div>\n")
	sb.WriteString(e.getScript())
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) FileExtension() string { return ".html" }

func (e *HTMLExporter) MimeType() string { return "text/html" }

func (e *HTMLExporter) SupportsAttachments() bool { return true }

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderHeader(doc *Document) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(doc.Title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	if len(doc.Participants) > 0 {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Participants:</strong> %s</span>\n",
			html.EscapeString(strings.Join(doc.Participants, ", "))))
	}
	if doc.DateRange != "" {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Date Range:</strong> %s</span>\n",
			html.EscapeString(doc.DateRange)))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Messages)))
	sb.WriteString("                <button class=\"action-button\" onclick=\"copyConversation()\" title=\"Copy conversation to clipboard\">Copy</button>\n")
	sb.WriteString("                <button class=\"action-button\" onclick=\"toggleTheme()\" title=\"Toggle theme\">Theme</button>\n")
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message, attachments *AttachmentMap) string {
	var sb strings.Builder

	class := "message"
	if msg.IsSystemEvent() {
		class += " system-message"
	}
	sb.WriteString(fmt.Sprintf("            <div class=\"%s\">\n", class))

	sender := msg.Sender
	if sender == "" {
		sender = "Unknown"
	}
	timestamp := ""
	if ts, ok := msg.Timestamp(); ok {
		timestamp = ts.UTC().Format("2006-01-02 15:04 UTC")
	}
	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"sender\">%s</span>\n", html.EscapeString(sender)))
	if timestamp != "" {
		sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n", timestamp))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.renderBody(msg, attachments))
	sb.WriteString("                </div>\n")

	if len(msg.Reactions) > 0 {
		types := make([]string, len(msg.Reactions))
		for i, r := range msg.Reactions {
			types[i] = html.EscapeString(r.Type)
		}
		sb.WriteString(fmt.Sprintf("                <div class=\"reactions\">%s</div>\n", strings.Join(types, " ")))
	}

	if block := e.renderAttachments(msg, attachments); block != "" {
		sb.WriteString(block)
	}

	sb.WriteString("            </div>\n")
	return sb.String()
}

// renderBody emits the message body. HTML bodies pass through with their
// inline image sources rewritten to embedded data URIs; text bodies are
// escaped into a paragraph.
func (e *HTMLExporter) renderBody(msg model.Message, attachments *AttachmentMap) string {
	content := msg.Content
	if content == "" {
		if msg.IsSystemEvent() {
			return "<p class=\"placeholder\">[System event]</p>\n"
		}
		if len(msg.Attachments) == 0 {
			return "<p class=\"placeholder\">[No content]</p>\n"
		}
		return ""
	}

	if msg.ContentType != "html" {
		return "<p>" + html.EscapeString(content) + "</p>\n"
	}

	return e.embedInlineImages(content, attachments) + "\n"
}

// embedInlineImages rewrites <img> src attributes pointing at downloaded
// attachments into base64 data URIs, keeping the remote URL when the file
// was not downloaded or cannot be read.
func (e *HTMLExporter) embedInlineImages(content string, attachments *AttachmentMap) string {
	return imgTagPattern.ReplaceAllStringFunc(content, func(tag string) string {
		m := imgSrcPattern.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		src := html.UnescapeString(m[1])
		local, ok := attachments.Local(src)
		if !ok {
			return tag
		}
		dataURI, err := e.dataURI(local)
		if err != nil {
			return tag
		}
		return strings.Replace(tag, m[0], `src="`+dataURI+`"`, 1)
	})
}

func (e *HTMLExporter) renderAttachments(msg model.Message, attachments *AttachmentMap) string {
	if len(msg.Attachments) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("                <div class=\"attachments\">\n")
	for _, a := range msg.Attachments {
		name := a.Name
		if name == "" {
			name = "Attachment"
		}
		switch {
		case a.URL == "":
			sb.WriteString(fmt.Sprintf("                    <span class=\"attachment\">%s (no URL)</span>\n",
				html.EscapeString(name)))
		case a.IsImage():
			src := a.URL
			if local, ok := attachments.Local(a.URL); ok {
				if dataURI, err := e.dataURI(local); err == nil {
					src = dataURI
				}
			}
			sb.WriteString(fmt.Sprintf("                    <img class=\"attachment-image\" src=\"%s\" alt=\"%s\">\n",
				html.EscapeString(src), html.EscapeString(name)))
		default:
			sb.WriteString(fmt.Sprintf("                    <a class=\"attachment\" href=\"%s\">%s</a>\n",
				html.EscapeString(a.URL), html.EscapeString(name)))
		}
	}
	sb.WriteString("                </div>\n")
	return sb.String()
}

// dataURI reads a downloaded attachment (path relative to the output
// directory) and encodes it as a data URI. The MIME type comes from the
// extension the resolver chose.
func (e *HTMLExporter) dataURI(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(e.opts.BaseDir, filepath.FromSlash(relPath)))
	if err != nil {
		return "", err
	}
	mimeType := "application/octet-stream"
	for mt, ext := range mimeExtensions {
		if ext == strings.ToLower(filepath.Ext(relPath)) {
			mimeType = mt
			break
		}
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

func (e *HTMLExporter) getCSS() string {
	return `    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Source Code Pro", monospace;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --message-bg: #f6f8fa;
            --accent-blue: #0366d6;
            --accent-purple: #6f42c1;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --text-muted: #565f89;
            --border-color: #414868;
            --message-bg: #1f2335;
            --accent-blue: #7aa2f7;
            --accent-purple: #bb9af7;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
            transition: background 0.3s ease, color 0.3s ease;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1);
            overflow: hidden;
        }

        .header {
            padding: 32px;
            background: var(--bg-tertiary);
            border-bottom: 2px solid var(--border-color);
        }

        .header h1 {
            font-size: 28px;
            font-weight: 700;
            margin-bottom: 16px;
        }

        .metadata {
            display: flex;
            flex-wrap: wrap;
            gap: 16px;
            font-size: 14px;
            color: var(--text-secondary);
            align-items: center;
        }

        .action-button {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 6px 12px;
            cursor: pointer;
            font-size: 14px;
            color: var(--text-primary);
        }

        .action-button:hover {
            background: var(--bg-primary);
        }

        .conversation {
            padding: 24px 32px;
        }

        .message {
            margin-bottom: 24px;
            padding: 20px;
            border-radius: 8px;
            background: var(--message-bg);
            border-left: 4px solid var(--accent-blue);
        }

        .system-message {
            background: var(--bg-tertiary);
            border-left-color: var(--accent-purple);
            font-size: 14px;
        }

        .message-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 12px;
            font-size: 14px;
        }

        .sender {
            font-weight: 600;
        }

        .timestamp {
            color: var(--text-muted);
            font-size: 13px;
            font-family: var(--font-mono);
        }

        .message-content {
            line-height: 1.7;
            overflow-wrap: break-word;
        }

        .message-content img {
            max-width: 100%;
            border-radius: 6px;
        }

        .placeholder {
            color: var(--text-muted);
            font-style: italic;
        }

        .reactions {
            margin-top: 8px;
            font-size: 13px;
            color: var(--text-secondary);
        }

        .attachments {
            margin-top: 12px;
            padding-top: 12px;
            border-top: 1px solid var(--border-color);
        }

        .attachment {
            display: inline-block;
            margin-right: 12px;
            color: var(--accent-blue);
        }

        .attachment-image {
            display: block;
            max-width: 100%;
            margin: 8px 0;
            border-radius: 6px;
        }

        .empty {
            color: var(--text-muted);
            font-style: italic;
        }

        @media print {
            body { padding: 0; }
            .container { box-shadow: none; border-radius: 0; }
            .action-button { display: none; }
            .message { page-break-inside: avoid; }
        }
    </style>
`
}

// =============================================================================
// EMBEDDED JAVASCRIPT
// =============================================================================

// getScript returns the theme toggle plus the clipboard helper. Copying
// converts embedded data URIs to blob URLs first; several paste targets
// reject multi-megabyte data URIs but accept blob references.
func (e *HTMLExporter) getScript() string {
	return `    <script>
        function toggleTheme() {
            const body = document.body;
            if (body.classList.contains('dark-theme')) {
                body.classList.remove('dark-theme');
                body.classList.add('light-theme');
            } else {
                body.classList.remove('light-theme');
                body.classList.add('dark-theme');
            }
        }

        async function copyConversation() {
            const conversation = document.getElementById('conversation');
            const clone = conversation.cloneNode(true);

            for (const img of clone.querySelectorAll('img')) {
                const src = img.getAttribute('src') || '';
                if (!src.startsWith('data:')) continue;
                try {
                    const blob = await (await fetch(src)).blob();
                    img.setAttribute('src', URL.createObjectURL(blob));
                } catch (err) {
                    // Keep the data URI if conversion fails.
                }
            }

            const item = new ClipboardItem({
                'text/html': new Blob([clone.innerHTML], { type: 'text/html' }),
                'text/plain': new Blob([conversation.innerText], { type: 'text/plain' })
            });
            try {
                await navigator.clipboard.write([item]);
            } catch (err) {
                await navigator.clipboard.writeText(conversation.innerText);
            }
        }
    </script>
`
}
