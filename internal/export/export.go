// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a filtered conversation to the supported output
// formats and resolves message attachments to local files.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/teams-export/internal/model"
)

// =============================================================================
// TYPES
// =============================================================================

// Document is the fully prepared input to a renderer: filtered, sorted
// messages plus the header fields shared by every format.
type Document struct {
	Title        string
	Participants []string
	DateRange    string
	Messages     []model.Message

	// Attachments maps remote attachment URLs to local relative paths.
	// Nil when attachment download was skipped or the format does not
	// render attachments.
	Attachments *AttachmentMap
}

// Options configures format-specific rendering behavior.
type Options struct {
	// BaseDir is the directory the output file will be written to. The
	// HTML renderer resolves relative attachment paths against it when
	// embedding images.
	BaseDir string

	// Theme selects the HTML color scheme, "light" (default) or "dark".
	Theme string
}

// Exporter renders a document to a specific output format.
type Exporter interface {
	// Export renders the document to its final byte form.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the rendered output.
	MimeType() string

	// SupportsAttachments reports whether the format renders local
	// attachment files. When false, attachment download is skipped.
	SupportsAttachments() bool
}

// =============================================================================
// FACTORY
// =============================================================================

// Formats lists the supported output format names.
var Formats = []string{"json", "csv", "markdown", "html"}

// NewExporter creates an exporter for the named format. Accepts "md" as an
// alias for "markdown".
func NewExporter(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = &Options{}
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return &JSONExporter{}, nil
	case "csv":
		return &CSVExporter{}, nil
	case "markdown", "md":
		return &MarkdownExporter{}, nil
	case "html":
		return &HTMLExporter{opts: *opts}, nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

// =============================================================================
// FILENAMES
// =============================================================================

var stemDisallowed = regexp.MustCompile(`[^a-z0-9_-]+`)

// foldDiacritics strips combining marks so "Café Crew" stems to "cafe_crew".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeStem folds diacritics to their base letters and collapses
// anything outside [a-z0-9_-] to a single underscore. May return "".
func sanitizeStem(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	stem := stemDisallowed.ReplaceAllString(strings.ToLower(folded), "_")
	return strings.Trim(stem, "_")
}

// Stem derives a filesystem-safe lowercase stem from a conversation title,
// "cafe_crew" from "Café Crew". An empty result falls back to "chat".
func Stem(title string) string {
	if stem := sanitizeStem(title); stem != "" {
		return stem
	}
	return "chat"
}

// Filename assembles the output filename from stem, date fragment, and
// extension: "team_sync_2025-01-01.json".
func Filename(stem, fragment, ext string) string {
	if fragment == "" {
		return stem + ext
	}
	return stem + "_" + fragment + ext
}

// AttachmentsDirName returns the name of the directory holding downloaded
// attachments, alongside the output file.
func AttachmentsDirName(stem, fragment string) string {
	if fragment == "" {
		return stem + "_files"
	}
	return stem + "_" + fragment + "_files"
}
