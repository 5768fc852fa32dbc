// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"net/url"
)

// =============================================================================
// PAGINATION
// =============================================================================

// ListOptions configures a paginated listing.
type ListOptions struct {
	// Query parameters applied to the FIRST request only. Continuation
	// links are server-supplied absolute URLs and are followed verbatim.
	Query url.Values

	// Stop halts the sequence when it returns true for a record. The
	// matching record is still yielded; no further pages are fetched.
	Stop func(Record) bool

	// MaxItems bounds the total yielded item count (0 = unbounded). The
	// sequence halts exactly at the limit, even mid-page.
	MaxItems int

	// PageProgress, if set, receives the cumulative fetched item count
	// once per page boundary. It is never called per item.
	PageProgress func(total int)
}

// Paginator lazily walks a paginated listing. It is single-use: a fresh
// Paginator restarts from the first page, and there is no mid-stream resume.
// Not safe for concurrent use; each worker builds its own.
type Paginator struct {
	client  *Client
	nextURL string
	opts    ListOptions

	firstQuery url.Values // consumed by the first fetch
	buf        []Record
	idx        int
	yielded    int
	fetched    int
	done       bool
}

// List starts a paginated listing of path (relative to the base URL, or an
// absolute URL).
func (c *Client) List(path string, opts ListOptions) *Paginator {
	u := path
	if len(u) > 0 && u[0] == '/' {
		u = c.baseURL + u
	}
	return &Paginator{
		client:     c,
		nextURL:    u,
		opts:       opts,
		firstQuery: opts.Query,
	}
}

// Next yields the next record. The second return is false once the sequence
// is exhausted, whether by the final page, the stop-condition, or MaxItems.
func (p *Paginator) Next(ctx context.Context) (Record, bool, error) {
	if p.done {
		return nil, false, nil
	}

	for p.idx >= len(p.buf) {
		if p.nextURL == "" {
			p.done = true
			return nil, false, nil
		}

		page, err := p.client.getPage(ctx, p.nextURL, p.firstQuery)
		if err != nil {
			p.done = true
			return nil, false, err
		}
		p.firstQuery = nil // only the first request carries query params

		p.buf = page.Value
		p.idx = 0
		p.nextURL = page.NextLink
		p.fetched += len(page.Value)
		if p.opts.PageProgress != nil {
			p.opts.PageProgress(p.fetched)
		}
		// Empty pages with a continuation link loop back for the next one.
	}

	rec := p.buf[p.idx]
	p.idx++
	p.yielded++

	if p.opts.Stop != nil && p.opts.Stop(rec) {
		p.done = true
	}
	if p.opts.MaxItems > 0 && p.yielded >= p.opts.MaxItems {
		p.done = true
	}
	return rec, true, nil
}

// Collect drains the paginator into a slice.
func (p *Paginator) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	for {
		rec, ok, err := p.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}

// =============================================================================
// CHAT ENDPOINTS
// =============================================================================

// ListChats fetches every chat the signed-in user participates in, with
// members expanded so titles can be derived from participant names.
func (c *Client) ListChats(ctx context.Context) ([]Record, error) {
	return c.List("/me/chats", ListOptions{
		Query: url.Values{"$expand": {"members"}},
	}).Collect(ctx)
}

// ChatMessages starts a paginated listing of a chat's messages, newest
// first, 50 per page. The stop-condition and limits in opts apply; query
// parameters in opts are merged into the first request.
func (c *Client) ChatMessages(chatID string, opts ListOptions) *Paginator {
	q := url.Values{"$top": {"50"}}
	for k, vs := range opts.Query {
		q[k] = vs
	}
	opts.Query = q
	return c.List("/me/chats/"+url.PathEscape(chatID)+"/messages", opts)
}
