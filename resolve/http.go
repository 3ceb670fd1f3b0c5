// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 512 << 10
	maxSnippetRunes     = 300
	userAgent           = "twingest/1.0 (+link preview)"
)

var errTooManyRedirects = errors.New("too many redirects")

// HTTPLinkResolver resolves links over HTTP and extracts page metadata with goquery.
type HTTPLinkResolver struct {
	client       *http.Client
	maxRedirects int
	maxBodyBytes int64
}

var _ LinkResolver = (*HTTPLinkResolver)(nil)

// HTTPOption configures an HTTPLinkResolver.
type HTTPOption func(*HTTPLinkResolver)

// WithHTTPClient replaces the HTTP client. Its CheckRedirect is overridden.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTPLinkResolver) {
		copied := *client
		h.client = &copied
	}
}

// WithMaxRedirects bounds the length of a redirect chain.
func WithMaxRedirects(n int) HTTPOption {
	return func(h *HTTPLinkResolver) {
		if n > 0 {
			h.maxRedirects = n
		}
	}
}

// WithMaxBodyBytes bounds how much of a page is read for extraction.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(h *HTTPLinkResolver) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHTTPLinkResolver creates an HTTPLinkResolver. Per-call deadlines come
// from the context; the client timeout is only a backstop.
func NewHTTPLinkResolver(opts ...HTTPOption) *HTTPLinkResolver {
	h := &HTTPLinkResolver{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRedirects: defaultMaxRedirects,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= h.maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
	return h
}

// ResolveRedirect follows the redirect chain from rawURL and returns the
// URL of the last response. It asks with HEAD and falls back to GET for
// servers that reject HEAD; a GET body is drained, not parsed.
func (h *HTTPLinkResolver) ResolveRedirect(ctx context.Context, rawURL string) (string, error) {
	resp, err := h.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	h.discard(resp)
	if resp.StatusCode < http.StatusBadRequest {
		return resp.Request.URL.String(), nil
	}

	resp, err = h.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", err
	}
	h.discard(resp)
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return resp.Request.URL.String(), nil
}

// FetchAndExtract downloads the page at rawURL and extracts its preview.
// The title prefers og:title over <title>. The snippet prefers the meta
// description, then og:description, then the first non-empty paragraph.
func (h *HTTPLinkResolver) FetchAndExtract(ctx context.Context, rawURL string) (Preview, error) {
	resp, err := h.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return Preview{}, err
	}
	defer h.discard(resp)

	if resp.StatusCode != http.StatusOK {
		return Preview{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "text/html" && mediaType != "application/xhtml+xml") {
			return Preview{}, fmt.Errorf("%w: %s", ErrNotHTML, ct)
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, h.maxBodyBytes))
	if err != nil {
		return Preview{}, fmt.Errorf("parse document: %w", err)
	}
	return extractPreview(doc), nil
}

func (h *HTTPLinkResolver) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	return resp, nil
}

// discard drains a bounded amount of the body so the connection can be reused.
func (h *HTTPLinkResolver) discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBodyBytes))
	resp.Body.Close()
}

func extractPreview(doc *goquery.Document) Preview {
	var p Preview
	p.PageTitle = collapse(doc.Find("title").First().Text())
	p.Title = metaContent(doc, `meta[property="og:title"]`)
	if p.Title == "" {
		p.Title = p.PageTitle
	}

	snippet := metaContent(doc, `meta[name="description"]`)
	if snippet == "" {
		snippet = metaContent(doc, `meta[property="og:description"]`)
	}
	if snippet == "" {
		doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			snippet = collapse(sel.Text())
			return snippet == ""
		})
	}
	p.Snippet = truncateRunes(snippet, maxSnippetRunes)
	return p
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return collapse(content)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}
