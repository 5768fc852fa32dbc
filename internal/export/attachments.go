// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/teams-export/internal/model"
)

// =============================================================================
// ATTACHMENT MAP
// =============================================================================

// AttachmentMap maps remote attachment URLs to local relative paths,
// preserving first-seen order. Nil is a valid empty map for lookups.
type AttachmentMap struct {
	paths map[string]string
	order []string
}

// NewAttachmentMap returns an empty attachment map.
func NewAttachmentMap() *AttachmentMap {
	return &AttachmentMap{paths: make(map[string]string)}
}

// Add records the local path for a URL. First write wins.
func (m *AttachmentMap) Add(url, local string) {
	if _, exists := m.paths[url]; exists {
		return
	}
	m.paths[url] = local
	m.order = append(m.order, url)
}

// Local returns the local relative path for a URL, if downloaded.
func (m *AttachmentMap) Local(url string) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.paths[url]
	return p, ok
}

// Len returns the number of resolved attachments.
func (m *AttachmentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.paths)
}

// URLs returns the resolved URLs in first-seen order.
func (m *AttachmentMap) URLs() []string {
	if m == nil {
		return nil
	}
	return m.order
}

// =============================================================================
// RESOLVER
// =============================================================================

// Downloader fetches a remote URL, returning the body and its content type.
// The Graph client satisfies this.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Resolver downloads the attachments referenced by a message set into a
// local directory. Each distinct URL is fetched exactly once; failures are
// logged and skipped, an export never fails over an attachment.
type Resolver struct {
	downloader Downloader
	dir        string
	relDir     string
}

// NewResolver creates a resolver writing into dir. Rendered links use the
// directory's base name as the relative prefix, so the export file and its
// attachment directory stay portable as a pair.
func NewResolver(d Downloader, dir string) *Resolver {
	return &Resolver{
		downloader: d,
		dir:        dir,
		relDir:     filepath.Base(dir),
	}
}

// attachmentRef is one URL worth downloading, with naming hints.
type attachmentRef struct {
	url     string
	name    string
	isImage bool
}

// collectRefs gathers every attachment URL in the message set: inline body
// images first, then attachment records, deduplicated in first-seen order.
func collectRefs(msgs []model.Message) []attachmentRef {
	seen := make(map[string]bool)
	var refs []attachmentRef

	add := func(ref attachmentRef) {
		if ref.url == "" || seen[ref.url] {
			return
		}
		seen[ref.url] = true
		refs = append(refs, ref)
	}

	for _, msg := range msgs {
		for _, img := range ExtractInlineImages(msg.Content) {
			add(attachmentRef{url: img.Src, name: img.Alt, isImage: true})
		}
		for _, a := range msg.Attachments {
			add(attachmentRef{url: a.URL, name: a.Name, isImage: a.IsImage()})
		}
	}
	return refs
}

// Resolve downloads every distinct attachment URL in msgs and returns the
// URL to local-path mapping. The attachment directory is only created when
// there is something to download.
func (r *Resolver) Resolve(ctx context.Context, msgs []model.Message) *AttachmentMap {
	resolved := NewAttachmentMap()

	refs := collectRefs(msgs)
	if len(refs) == 0 {
		return resolved
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		log.Printf("attachments: cannot create %s: %v", r.dir, err)
		return resolved
	}

	for _, ref := range refs {
		local, err := r.download(ctx, ref)
		if err != nil {
			log.Printf("attachments: skipping %s: %v", ref.url, err)
			continue
		}
		resolved.Add(ref.url, path.Join(r.relDir, local))
	}
	return resolved
}

// download fetches one attachment into the directory and returns the final
// filename within it.
func (r *Resolver) download(ctx context.Context, ref attachmentRef) (string, error) {
	body, contentType, err := r.downloader.Download(ctx, ref.url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(r.dir, ".download-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	name, err := r.claimName(baseName(ref), extensionFor(contentType, ref.isImage))
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, filepath.Join(r.dir, name)); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return name, nil
}

// claimName reserves a free filename via exclusive create, appending _1,
// _2, ... when distinct attachments share a name. Exclusive creation keeps
// concurrent export workers from racing on the same candidate.
func (r *Resolver) claimName(base, ext string) (string, error) {
	for i := 0; ; i++ {
		candidate := base + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(r.dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}

// =============================================================================
// NAMING
// =============================================================================

// mimeExtensions maps the content types Teams commonly serves to file
// extensions. Anything else falls back through extensionFor.
var mimeExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/bmp":     ".bmp",
	"image/svg+xml": ".svg",
	"image/webp":    ".webp",
	"image/tiff":    ".tif",

	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
	"application/json": ".json",
	"text/plain":       ".txt",
	"text/html":        ".html",
	"text/csv":         ".csv",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
}

// extensionFor picks a file extension from the response content type. With
// no usable content type, images default to .png and everything else to
// .bin.
func extensionFor(contentType string, isImage bool) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if ext, ok := mimeExtensions[strings.TrimSpace(strings.ToLower(mediaType))]; ok {
		return ext
	}
	if isImage {
		return ".png"
	}
	return ".bin"
}

// baseName derives the filename base for an attachment: the sanitized
// attachment name, else the last URL path segment, else a random name.
// Any existing extension is dropped; extensionFor supplies the real one.
func baseName(ref attachmentRef) string {
	if stem := sanitizeStem(strings.TrimSuffix(ref.name, filepath.Ext(ref.name))); stem != "" {
		return stem
	}
	if u, err := url.Parse(ref.url); err == nil {
		segment := path.Base(u.Path)
		if stem := sanitizeStem(strings.TrimSuffix(segment, path.Ext(segment))); stem != "" {
			return stem
		}
	}
	return "attachment-" + uuid.NewString()[:8]
}
