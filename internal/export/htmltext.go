// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"html"
	"regexp"
	"strings"
)

// =============================================================================
// HTML TO TEXT
// =============================================================================

// The message body arrives as an HTML fragment. Plain-text formats run it
// through an ordered rewrite pipeline; order matters, entity decoding must
// come first and tag stripping last.

var (
	imgTagPattern    = regexp.MustCompile(`(?is)<img[^>]*>`)
	imgSrcPattern    = regexp.MustCompile(`(?is)src=["']([^"']+)["']`)
	imgAltPattern    = regexp.MustCompile(`(?is)alt=["']([^"']*)["']`)
	imgItemIDPattern = regexp.MustCompile(`(?is)itemid=["']([^"']+)["']`)

	blockTagPattern  = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/li|/tr|/h[1-6])>`)
	strongTagPattern = regexp.MustCompile(`(?is)<(?:strong|b)\b[^>]*>(.*?)</(?:strong|b)>`)
	emTagPattern     = regexp.MustCompile(`(?is)<(?:em|i)\b[^>]*>(.*?)</(?:em|i)>`)
	anchorPattern    = regexp.MustCompile(`(?is)<a\b[^>]*href=["']([^"']+)["'][^>]*>(.*?)</a>`)
	anyTagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)

	blankRunPattern = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
	spaceRunPattern = regexp.MustCompile(`[ \t]+`)
	lineEdgePattern = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// htmlRewriteRules is the ordered pipeline applied by HTMLToText.
var htmlRewriteRules = []func(string) string{
	html.UnescapeString,
	func(s string) string { return imgTagPattern.ReplaceAllString(s, "") },
	func(s string) string { return blockTagPattern.ReplaceAllString(s, "\n") },
	// Braced group references: a bare $1 followed by a word character
	// (like the marker "_") would parse as a longer group name.
	func(s string) string { return strongTagPattern.ReplaceAllString(s, "*${1}*") },
	func(s string) string { return emTagPattern.ReplaceAllString(s, "_${1}_") },
	func(s string) string { return anchorPattern.ReplaceAllString(s, "$2 ($1)") },
	func(s string) string { return anyTagPattern.ReplaceAllString(s, "") },
	func(s string) string { return spaceRunPattern.ReplaceAllString(s, " ") },
	func(s string) string { return lineEdgePattern.ReplaceAllString(s, "") },
	func(s string) string { return blankRunPattern.ReplaceAllString(s, "\n\n") },
	strings.TrimSpace,
}

// HTMLToText converts an HTML message body to readable plain text. Inline
// images are dropped (callers extract them separately), emphasis becomes
// markdown-style markers, and links keep both text and target.
func HTMLToText(content string) string {
	for _, rule := range htmlRewriteRules {
		content = rule(content)
	}
	return content
}

// =============================================================================
// INLINE IMAGES
// =============================================================================

// InlineImage is an <img> found inside a message body.
type InlineImage struct {
	// Src is the image source URL, preferring the src attribute and
	// falling back to itemid (hosted-content references carry the real
	// identifier there).
	Src string

	// Alt is the alt text, empty when absent.
	Alt string
}

// ExtractInlineImages returns the inline images embedded in an HTML message
// body, in document order.
func ExtractInlineImages(content string) []InlineImage {
	var images []InlineImage
	for _, tag := range imgTagPattern.FindAllString(content, -1) {
		img := InlineImage{}
		if m := imgSrcPattern.FindStringSubmatch(tag); m != nil {
			img.Src = html.UnescapeString(m[1])
		}
		if img.Src == "" {
			if m := imgItemIDPattern.FindStringSubmatch(tag); m != nil {
				img.Src = html.UnescapeString(m[1])
			}
		}
		if m := imgAltPattern.FindStringSubmatch(tag); m != nil {
			img.Alt = html.UnescapeString(m[1])
		}
		if img.Src != "" {
			images = append(images, img)
		}
	}
	return images
}
