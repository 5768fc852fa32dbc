// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires the command-line surface: flag parsing, chat
// selection, and the export run itself.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/teams-export/internal/cache"
	"github.com/jeranaias/teams-export/internal/config"
	"github.com/jeranaias/teams-export/internal/dates"
	"github.com/jeranaias/teams-export/internal/graph"
	"github.com/jeranaias/teams-export/internal/model"
	"github.com/jeranaias/teams-export/internal/runner"
)

// flags holds the raw command-line values before they are merged into the
// loaded configuration.
type flags struct {
	configPath    string
	participant   string
	chatName      string
	from          string
	to            string
	format        string
	outputDir     string
	theme         string
	search        string
	list          bool
	all           bool
	noAttachments bool
	maxMessages   int
	refresh       bool
	clearCache    bool
	saveConfig    bool
}

// NewRootCommand builds the teams-export root command.
func NewRootCommand(version string) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:     "teams-export",
		Short:   "Export Microsoft Teams conversations to local files",
		Version: version,
		Long: `Export Microsoft Teams conversations to JSON, CSV, markdown, or HTML.

Chats are selected by participant name or email (--participant), by chat
name (--chat-name), interactively from a menu, or all at once (--all).
The access token is read from the TEAMS_EXPORT_TOKEN environment variable
or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "config file path (default ~/.teams-export/config.toml)")
	cmd.Flags().StringVarP(&f.participant, "participant", "p", "", "select the chat with this participant name or email")
	cmd.Flags().StringVarP(&f.chatName, "chat-name", "c", "", "select the chat with this name")
	cmd.Flags().StringVar(&f.from, "from", "today", "start of the date range (YYYY-MM-DD or today, yesterday, \"last week\", \"last month\")")
	cmd.Flags().StringVar(&f.to, "to", "", "end of the date range (defaults to the start day)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: json, csv, markdown, html")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&f.theme, "theme", "", "HTML theme: light or dark")
	cmd.Flags().StringVar(&f.search, "search", "", "filter chats by substring before listing or exporting")
	cmd.Flags().BoolVar(&f.list, "list", false, "list available chats and exit")
	cmd.Flags().BoolVar(&f.all, "all", false, "export every chat (after --search filtering)")
	cmd.Flags().BoolVar(&f.noAttachments, "no-attachments", false, "skip attachment download")
	cmd.Flags().IntVar(&f.maxMessages, "max-messages", 0, "cap on fetched messages per chat (0 = unlimited)")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass the chat list cache")
	cmd.Flags().BoolVar(&f.clearCache, "clear-cache", false, "delete the cached chat list before running")
	cmd.Flags().BoolVar(&f.saveConfig, "save-config", false, "write the effective settings to the config file and exit")

	return cmd
}

// Execute runs the root command with signal-aware cancellation.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// RUN
// =============================================================================

func run(cmd *cobra.Command, f *flags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	if f.saveConfig {
		if err := config.Save(cfg); err != nil {
			return err
		}
		path, _ := config.ConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Saved configuration to %s\n", path)
		return nil
	}

	if cfg.Token == "" {
		return fmt.Errorf("no access token: set TEAMS_EXPORT_TOKEN (environment or .env file)")
	}

	client := graph.NewClient(cfg.Token).WithBaseURL(cfg.GraphBaseURL)

	chats, err := loadChats(ctx, client, cfg, f)
	if err != nil {
		return err
	}
	chats = model.FilterByQuery(chats, f.search)

	if f.list {
		return printChatList(cmd, chats)
	}

	start, end, err := dates.ResolveRange(f.from, f.to, time.Now().UTC())
	if err != nil {
		return err
	}

	selected, err := selectChats(cmd, chats, f)
	if err != nil {
		return err
	}

	svc := runner.New(client, runner.Options{
		OutputDir:           cfg.OutputDir,
		Format:              cfg.Format,
		Theme:               cfg.Theme,
		Start:               start,
		End:                 end,
		DownloadAttachments: cfg.DownloadAttachments,
		MaxMessages:         f.maxMessages,
		Concurrency:         cfg.Concurrency,
		Progress: func(title string, fetched int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: fetched %d messages", title, fetched)
		},
	})

	results := svc.ExportAll(ctx, selected)
	fmt.Fprintln(cmd.ErrOrStderr())

	return printResults(cmd, results, dates.RangeLabel(start, end))
}

// loadConfig loads the configuration and folds the command-line flags on
// top of it.
func loadConfig(f *flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.format != "" {
		cfg.Format = f.format
	}
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.theme != "" {
		cfg.Theme = f.theme
	}
	if f.noAttachments {
		cfg.DownloadAttachments = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// CHAT LIST
// =============================================================================

// loadChats returns the normalized chat list, served from the local cache
// when fresh. The cache is keyed by the account id so switching accounts
// never serves a stale list.
func loadChats(ctx context.Context, client *graph.Client, cfg *config.Config, f *flags) ([]model.Conversation, error) {
	me, err := client.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving signed-in user: %w", err)
	}
	userID, _ := me["id"].(string)

	var store *cache.ChatCache
	if dir, err := config.ConfigDir(); err == nil {
		store = cache.New(dir, time.Duration(cfg.CacheTTLHours)*time.Hour)
	}

	if store != nil && f.clearCache {
		store.Clear()
	}

	if store != nil && !f.refresh {
		if chats, ok := store.Get(userID); ok {
			return chats, nil
		}
	}

	records, err := client.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}

	chats := make([]model.Conversation, 0, len(records))
	for _, rec := range records {
		chats = append(chats, model.ConversationFromRecord(rec))
	}
	model.SortByActivity(chats)

	if store != nil {
		store.Put(userID, chats)
	}
	return chats, nil
}

func printChatList(cmd *cobra.Command, chats []model.Conversation) error {
	if len(chats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No chats found.")
		return nil
	}
	for i, conv := range chats {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s\n", i+1, conv.SummaryLine())
	}
	return nil
}

// printResults writes the per-conversation outcomes and the run summary.
// The command fails only when nothing exported successfully.
func printResults(cmd *cobra.Command, results []runner.Result, rangeLabel string) error {
	out := cmd.OutOrStdout()
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", res.Title, res.Err)
			continue
		}
		fmt.Fprintf(out, "  ok %s: %d messages -> %s\n", res.Title, res.MessageCount, res.OutputPath)
	}

	exported, messages := runner.Summarize(results)
	fmt.Fprintf(out, "\nExported %d of %d chats (%d messages, %s)\n",
		exported, len(results), messages, rangeLabel)

	if exported == 0 && len(results) > 0 {
		return fmt.Errorf("all exports failed")
	}
	return nil
}
