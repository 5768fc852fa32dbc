// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/teams-export/internal/model"
)

// selectChats resolves which conversations to export: all of them, an
// exact match on participant or chat name, or an interactive pick when no
// selector was given.
func selectChats(cmd *cobra.Command, chats []model.Conversation, f *flags) ([]model.Conversation, error) {
	if len(chats) == 0 {
		return nil, fmt.Errorf("no chats available")
	}

	if f.all {
		return chats, nil
	}

	if f.participant != "" || f.chatName != "" {
		conv, err := model.Choose(chats, f.participant, f.chatName)
		if err != nil {
			return nil, err
		}
		return []model.Conversation{conv}, nil
	}

	conv, err := chooseInteractive(cmd, chats)
	if err != nil {
		return nil, err
	}
	return []model.Conversation{conv}, nil
}

// chooseInteractive shows a numbered menu on stderr and reads the pick
// from stdin. "q" aborts.
func chooseInteractive(cmd *cobra.Command, chats []model.Conversation) (model.Conversation, error) {
	errOut := cmd.ErrOrStderr()

	fmt.Fprintln(errOut, "Available chats:")
	for i, conv := range chats {
		fmt.Fprintf(errOut, "%3d. %s\n", i+1, conv.SummaryLine())
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprintf(errOut, "Select a chat (1-%d, q to quit): ", len(chats))

		line, err := reader.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && answer == "" {
			return model.Conversation{}, fmt.Errorf("selection aborted")
		}
		if strings.EqualFold(answer, "q") {
			return model.Conversation{}, fmt.Errorf("selection aborted")
		}

		n, convErr := strconv.Atoi(answer)
		if convErr != nil || n < 1 || n > len(chats) {
			fmt.Fprintln(errOut, "Invalid selection.")
			if err != nil {
				return model.Conversation{}, fmt.Errorf("selection aborted")
			}
			continue
		}
		return chats[n-1], nil
	}
}
