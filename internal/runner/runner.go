// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runner drives the export pipeline: fetch, filter, resolve
// attachments, render, write. Multi-conversation runs fan out over a
// bounded worker pool.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/teams-export/internal/dates"
	"github.com/jeranaias/teams-export/internal/export"
	"github.com/jeranaias/teams-export/internal/graph"
	"github.com/jeranaias/teams-export/internal/model"
)

// DefaultConcurrency is the worker pool size for multi-conversation runs.
// Three keeps well under the per-user Graph throttling tier while still
// overlapping attachment downloads.
const DefaultConcurrency = 3

// =============================================================================
// TYPES
// =============================================================================

// Options configures an export run. Start and End bound the inclusive UTC
// window; both must be set.
type Options struct {
	OutputDir string
	Format    string
	Start     time.Time
	End       time.Time

	// Theme selects the HTML color scheme, "light" or "dark". Ignored by
	// the other formats.
	Theme string

	// DownloadAttachments enables the attachment resolver for formats
	// that render local files.
	DownloadAttachments bool

	// MaxMessages caps how many raw messages are fetched per
	// conversation. Zero means unbounded.
	MaxMessages int

	// Concurrency is the worker pool size for ExportAll. Zero selects
	// DefaultConcurrency.
	Concurrency int

	// Progress, when set, receives per-conversation fetch progress.
	Progress func(title string, fetched int)
}

// Result reports the outcome of one conversation export. Err is set when
// that conversation failed; sibling exports are unaffected.
type Result struct {
	Title        string
	OutputPath   string
	MessageCount int
	Err          error
}

// Service runs exports against a configured Graph client.
type Service struct {
	client *graph.Client
	opts   Options
}

// New creates an export service.
func New(client *graph.Client, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{client: client, opts: opts}
}

// =============================================================================
// SINGLE CONVERSATION
// =============================================================================

// ExportConversation runs the full pipeline for one conversation and
// returns its result. Errors are reported in the result, never panicked.
func (s *Service) ExportConversation(ctx context.Context, conv model.Conversation) Result {
	title := conv.Title()
	res := Result{Title: title}

	if conv.ID == "" {
		res.Err = fmt.Errorf("conversation has no id")
		return res
	}

	exporter, err := export.NewExporter(s.opts.Format, &export.Options{
		BaseDir: s.opts.OutputDir,
		Theme:   s.opts.Theme,
	})
	if err != nil {
		res.Err = err
		return res
	}

	msgs, err := s.fetchMessages(ctx, conv.ID, title)
	if err != nil {
		res.Err = fmt.Errorf("fetching messages: %w", err)
		return res
	}

	msgs = model.FilterRange(msgs, s.opts.Start, s.opts.End)
	model.SortByTimestamp(msgs)
	res.MessageCount = len(msgs)

	if err := os.MkdirAll(s.opts.OutputDir, 0755); err != nil {
		res.Err = fmt.Errorf("creating output dir: %w", err)
		return res
	}

	stem := export.Stem(title)
	fragment := dates.Fragment(s.opts.Start, s.opts.End)

	var attachments *export.AttachmentMap
	if s.opts.DownloadAttachments && exporter.SupportsAttachments() {
		dir := filepath.Join(s.opts.OutputDir, export.AttachmentsDirName(stem, fragment))
		attachments = export.NewResolver(s.client, dir).Resolve(ctx, msgs)
	}

	participants := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		if label := m.Label(); label != "" {
			participants = append(participants, label)
		}
	}

	doc := &export.Document{
		Title:        title,
		Participants: participants,
		DateRange:    dates.RangeLabel(s.opts.Start, s.opts.End),
		Messages:     msgs,
		Attachments:  attachments,
	}

	content, err := exporter.Export(doc)
	if err != nil {
		res.Err = fmt.Errorf("rendering: %w", err)
		return res
	}

	path, err := s.writeOutput(stem, fragment, exporter.FileExtension(), content)
	if err != nil {
		res.Err = fmt.Errorf("writing output: %w", err)
		return res
	}
	res.OutputPath = path
	return res
}

// fetchMessages pulls the conversation's raw messages, newest first,
// stopping once records fall before the window start.
func (s *Service) fetchMessages(ctx context.Context, chatID, title string) ([]model.Message, error) {
	opts := graph.ListOptions{
		Stop:     model.OlderThan(s.opts.Start),
		MaxItems: s.opts.MaxMessages,
	}
	if s.opts.Progress != nil {
		progress := s.opts.Progress
		opts.PageProgress = func(total int) { progress(title, total) }
	}

	records, err := s.client.ChatMessages(chatID, opts).Collect(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, model.MessageFromRecord(rec))
	}
	return msgs, nil
}

// writeOutput writes the rendered bytes under an exclusively created
// filename, suffixing _1, _2, ... when the name is taken. Concurrent
// workers exporting same-titled chats land on distinct files.
func (s *Service) writeOutput(stem, fragment, ext string, content []byte) (string, error) {
	base := stem
	if fragment != "" {
		base = stem + "_" + fragment
	}
	for i := 0; ; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(s.opts.OutputDir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
}

// =============================================================================
// WORKER POOL
// =============================================================================

// ExportAll exports every conversation through a bounded worker pool and
// returns one result per conversation, in input order. A failing
// conversation never aborts its siblings.
func (s *Service) ExportAll(ctx context.Context, convs []model.Conversation) []Result {
	results := make([]Result, len(convs))
	semaphore := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	for i, conv := range convs {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(i int, conv model.Conversation) {
			defer wg.Done()
			defer func() { <-semaphore }()

			results[i] = s.ExportConversation(ctx, conv)
			if results[i].Err != nil {
				log.Printf("export: %s: %v", results[i].Title, results[i].Err)
			}
		}(i, conv)
	}

	wg.Wait()
	return results
}

// Summarize tallies a run: conversations exported and total messages
// written.
func Summarize(results []Result) (exported, messages int) {
	for _, r := range results {
		if r.Err == nil {
			exported++
			messages += r.MessageCount
		}
	}
	return exported, messages
}
