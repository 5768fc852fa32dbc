// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateWidth truncates a string to a maximum display width, appending
// "..." when something was cut. Width is measured in terminal columns, so
// CJK characters count as 2. Chat topics frequently contain such characters,
// which is why this is not a plain rune count.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadWidth pads a string with spaces on the right up to the given display
// width, truncating first if it is too long. Used for aligned summary lines.
func PadWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// NormalizeSpace collapses runs of whitespace to single spaces, trims the
// ends, and lowercases. Chat and participant matching compares normalized
// forms so that "Team  Sync " and "team sync" are the same identifier.
func NormalizeSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
