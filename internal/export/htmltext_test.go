// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain paragraph",
			in:   "<p>hello world</p>",
			want: "hello world",
		},
		{
			name: "entities decoded",
			in:   "<p>a &amp; b &gt; c</p>",
			want: "a & b > c",
		},
		{
			name: "emphasis to markers",
			in:   "<p><strong>bold</strong> and <em>italic</em></p>",
			want: "*bold* and _italic_",
		},
		{
			name: "b and i variants",
			in:   "<b>bold</b> <i>italic</i>",
			want: "*bold* _italic_",
		},
		{
			name: "links keep text and target",
			in:   `<p>see <a href="https://example.com/doc">the doc</a></p>`,
			want: "see the doc (https://example.com/doc)",
		},
		{
			name: "inline images dropped",
			in:   `<p>before <img src="https://x/img.png" alt="pic"> after</p>`,
			want: "before after",
		},
		{
			name: "block tags become newlines",
			in:   "<p>one</p><p>two</p>",
			want: "one\ntwo",
		},
		{
			name: "br breaks lines",
			in:   "one<br>two<br/>three",
			want: "one\ntwo\nthree",
		},
		{
			name: "blank runs collapse",
			in:   "<p>one</p><div></div><p></p><p>two</p>",
			want: "one\n\ntwo",
		},
		{
			name: "unknown tags stripped",
			in:   `<span style="color:red">styled</span>`,
			want: "styled",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestExtractInlineImages(t *testing.T) {
	content := `<p>intro</p>` +
		`<img src="https://graph.example.com/a.png" alt="first">` +
		`<img alt="no source here">` +
		`<img itemid="https://graph.example.com/hosted/b" alt="hosted">` +
		`<img src="https://graph.example.com/c.png">`

	images := ExtractInlineImages(content)

	assert.Equal(t, []InlineImage{
		{Src: "https://graph.example.com/a.png", Alt: "first"},
		{Src: "https://graph.example.com/hosted/b", Alt: "hosted"},
		{Src: "https://graph.example.com/c.png"},
	}, images)
}

func TestExtractInlineImagesNone(t *testing.T) {
	assert.Empty(t, ExtractInlineImages("<p>just text</p>"))
	assert.Empty(t, ExtractInlineImages(""))
}
