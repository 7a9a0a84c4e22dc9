package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey indicates the pinning service credential was never configured.
var ErrNoAPIKey = errors.New("ipfs: pinning api key not configured")

const defaultUploadTimeout = 30 * time.Second

// Client uploads media and metadata documents to a pinning service that
// answers with the resulting CID.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// ClientOption adjusts optional client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport used for uploads.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient builds an upload client against the pinning endpoint.
func NewClient(endpoint, apiKey string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("ipfs: endpoint required")
	}
	c := &Client{
		endpoint:   trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultUploadTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type pinResponse struct {
	CID string `json:"cid"`
}

// UploadImage pins raw image bytes and returns the ipfs:// URI.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if len(data) == 0 {
		return "", fmt.Errorf("ipfs: empty image payload")
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("ipfs: build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("ipfs: build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ipfs: build upload form: %w", err)
	}
	return c.pin(ctx, &body, writer.FormDataContentType())
}

// UploadMetadata pins an NFT metadata document referencing an already pinned
// image and returns the ipfs:// URI.
func (c *Client) UploadMetadata(ctx context.Context, name, imageURI string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if !strings.HasPrefix(imageURI, "ipfs://") {
		return "", fmt.Errorf("ipfs: metadata image must be an ipfs:// uri, got %q", imageURI)
	}
	doc := map[string]string{
		"name":  name,
		"image": imageURI,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("ipfs: marshal metadata: %w", err)
	}
	return c.pin(ctx, bytes.NewReader(payload), "application/json")
}

func (c *Client) pin(ctx context.Context, body io.Reader, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/pin", body)
	if err != nil {
		return "", fmt.Errorf("ipfs: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ipfs: upload failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("ipfs: decode response: %w", err)
	}
	if pinned.CID == "" {
		return "", fmt.Errorf("ipfs: response missing cid")
	}
	return "ipfs://" + pinned.CID, nil
}
