package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const defaultContentType = "application/octet-stream"

// SourceFetcher downloads an image that should be staged
type SourceFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*SourceImage, error)
}

// SourceImage is an open download. The caller closes Body.
type SourceImage struct {
	Body        io.ReadCloser
	ContentType string
}

// HTTPSourceFetcher implements SourceFetcher over plain HTTP(S). It makes a
// single attempt per call.
type HTTPSourceFetcher struct {
	client *http.Client
}

// NewHTTPSourceFetcher creates a fetcher whose whole request, body
// included, is bounded by timeout
func NewHTTPSourceFetcher(timeout time.Duration) *HTTPSourceFetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPSourceFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// Fetch issues a GET and fails on any non-2xx status
func (h *HTTPSourceFetcher) Fetch(ctx context.Context, sourceURL string) (*SourceImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/gif, image/bmp, */*")
	req.Header.Set("User-Agent", "Vision-Analysis-Gateway/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: status code %d", resp.StatusCode)
	}

	return &SourceImage{
		Body:        resp.Body,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}, nil
}

// mediaType strips parameters from a Content-Type header value and falls
// back to application/octet-stream when it is missing or malformed
func mediaType(header string) string {
	if strings.TrimSpace(header) == "" {
		return defaultContentType
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "" {
		return defaultContentType
	}
	return mt
}
