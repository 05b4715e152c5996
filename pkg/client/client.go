package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client calls the image analysis HTTP API and prints what comes back.
// Failures are written to the output, never returned.
type Client struct {
	baseURL    string
	httpClient *http.Client
	out        io.Writer
}

// New creates a new image analysis client writing to out
func New(baseURL string, out io.Writer) (*Client, error) {
	return NewWithHTTPClient(baseURL, out, &http.Client{
		Timeout: 100 * time.Second,
	})
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(baseURL string, out io.Writer, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("service base URL cannot be empty")
	}
	if out == nil {
		out = os.Stdout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		out:        out,
	}, nil
}

// BaseURL returns the service address without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ContentTypeForExtension maps a file extension to the content type sent
// with an upload
func ContentTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// AnalyzeFromURL calls GET /api/ImageAnalysis/analyze
func (c *Client) AnalyzeFromURL(ctx context.Context, imageURL string) {
	if strings.TrimSpace(imageURL) == "" {
		c.printf("Image URL cannot be empty.\n")
		return
	}

	query := url.Values{}
	query.Set("imageUrl", imageURL)
	requestURL := fmt.Sprintf("%s/api/ImageAnalysis/analyze?%s", c.baseURL, query.Encode())
	c.printf("Sending GET request to: %s\n", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.printf("An unexpected error occurred: %v\n", err)
		return
	}
	c.do(req)
}

// UploadAndAnalyze calls POST /api/ImageAnalysis/upload with the file at
// filePath in the multipart field "file"
func (c *Client) UploadAndAnalyze(ctx context.Context, filePath string) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.printf("File not found: %s\n", filePath)
		} else {
			c.printf("File error: %v\n", err)
		}
		return
	}

	requestURL := c.baseURL + "/api/ImageAnalysis/upload"
	c.printf("Sending POST request to: %s\n", requestURL)

	body, contentType, err := multipartFile(filepath.Base(filePath), data)
	if err != nil {
		c.printf("An unexpected error occurred: %v\n", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		c.printf("An unexpected error occurred: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", contentType)
	c.do(req)
}

func multipartFile(fileName string, data []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", ContentTypeForExtension(filepath.Ext(fileName)))

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *Client) do(req *http.Request) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.printf("Request error: %v\n", err)
		c.printf("\nIs your ImageService running at %s?\n", c.baseURL)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.printf("Request error: %v\n", err)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.printf("Error: %s\n", resp.Status)
		c.printf("Error details: %s\n", body)
		return
	}

	c.printf("Request successful. Raw JSON response:\n")
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		c.printf("Error parsing JSON: %v\n", err)
		c.printf("%s\n", body)
		return
	}
	c.printf("%s\n", pretty.Bytes())
}

func (c *Client) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
