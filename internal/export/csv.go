// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"time"
)

// CSVExporter renders one row per message with a fixed column set. Content
// keeps its raw HTML; spreadsheet consumers filter on the other columns.
type CSVExporter struct{}

var csvHeader = []string{"timestamp", "sender", "sender_email", "content", "type"}

func (e *CSVExporter) Export(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, msg := range doc.Messages {
		timestamp := ""
		if ts, ok := msg.Timestamp(); ok {
			timestamp = ts.UTC().Format(time.RFC3339)
		}
		row := []string{timestamp, msg.Sender, msg.SenderEmail, msg.Content, msg.Type}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) FileExtension() string { return ".csv" }

func (e *CSVExporter) MimeType() string { return "text/csv" }

func (e *CSVExporter) SupportsAttachments() bool { return false }
