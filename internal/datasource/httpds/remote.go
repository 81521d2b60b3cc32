package httpds

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dwh/internal/datasource"
)

// Remote is an extract served over HTTP(S).
type Remote struct {
	client *Client
	url    string
}

var _ datasource.Source = (*Remote)(nil)

// NewRemote binds url to c. A nil client gets NewClient(Config{MaxRetries: 3}).
func NewRemote(c *Client, url string) *Remote {
	if c == nil {
		c = NewClient(Config{MaxRetries: 3})
	}
	return &Remote{client: c, url: url}
}

// IsURL reports whether path names an HTTP(S) extract.
func IsURL(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Open fetches the extract. Non-2xx responses are errors. Bodies are
// decompressed when the server says so or the URL path ends in ".gz".
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %s", r.url, resp.Status)
	}
	if !r.gzipped(resp) {
		return resp.Body, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("gunzip %s: %w", r.url, err)
	}
	return &gzipBody{Reader: zr, body: resp.Body}, nil
}

func (r *Remote) gzipped(resp *http.Response) bool {
	// net/http already decodes Content-Encoding: gzip it negotiated itself.
	if resp.Uncompressed {
		return false
	}
	if strings.EqualFold(resp.Header.Get("Content-Type"), "application/gzip") {
		return true
	}
	if u, err := url.Parse(r.url); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".gz")
	}
	return false
}

type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}
