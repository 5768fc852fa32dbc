// teams-export - Export Microsoft Teams conversations to local files.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/teams-export/internal/cli"

// Version information (set at build time)
var Version = "0.3.0"

func main() {
	cli.Execute(Version)
}
