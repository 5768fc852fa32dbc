// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import "encoding/json"

// JSONExporter renders the message list as indented JSON, full fidelity:
// parsing the output back yields the same messages.
type JSONExporter struct{}

func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc.Messages, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }

func (e *JSONExporter) SupportsAttachments() bool { return false }
