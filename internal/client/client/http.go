package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/goccy/go-json"
)

type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
}

// NewHTTPClient targets the service at baseURL, e.g. "http://127.0.0.1:8080".
// A nil hc gets a client with a 30s timeout.
func NewHTTPClient(baseURL string, hc *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server address %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{baseURL: u, http: hc}, nil
}

// WebSocketURL is the live chat channel endpoint.
func (c *HTTPClient) WebSocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

type errorBody struct {
	Error string `json:"error"`
}

func mapStatus(resp *http.Response) error {
	var eb errorBody
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := resp.Status
	if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, msg)
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// SyncSightings sends the whole queue as one JSON array.
func (c *HTTPClient) SyncSightings(ctx context.Context, batch []models.PendingSighting) (*models.SyncResult, error) {
	if batch == nil {
		batch = []models.PendingSighting{}
	}
	var res models.SyncResult
	if err := c.do(ctx, http.MethodPost, common.SyncSightingsPath, batch, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) AddSighting(ctx context.Context, s models.PendingSighting) (*models.Sighting, error) {
	var res models.Sighting
	if err := c.do(ctx, http.MethodPost, "/api/sightings", s, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListSightings(ctx context.Context) ([]models.Sighting, error) {
	var res []models.Sighting
	if err := c.do(ctx, http.MethodGet, "/api/sightings", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *HTTPClient) GetSighting(ctx context.Context, id string) (*models.SightingDetails, error) {
	var res models.SightingDetails
	if err := c.do(ctx, http.MethodGet, "/api/sightings/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error) {
	var res []models.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/sightings/"+url.PathEscape(room)+"/chat", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

type editRequest struct {
	Identification string   `json:"identification,omitempty"`
	Image          string   `json:"img,omitempty"`
	Signatures     []string `json:"signatures"`
}

func (c *HTTPClient) UpdateIdentification(ctx context.Context, id, identification string, signatures []string) error {
	return c.do(ctx, http.MethodPut, "/api/sightings/"+url.PathEscape(id)+"/identification",
		editRequest{Identification: identification, Signatures: signatures}, nil)
}

func (c *HTTPClient) UpdateImage(ctx context.Context, id, image string, signatures []string) error {
	return c.do(ctx, http.MethodPut, "/api/sightings/"+url.PathEscape(id)+"/image",
		editRequest{Image: image, Signatures: signatures}, nil)
}

func (c *HTTPClient) RequestImageUpload(ctx context.Context) (*models.UploadTicket, error) {
	var res models.UploadTicket
	if err := c.do(ctx, http.MethodPost, "/api/images/presign", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Species(ctx context.Context) ([]string, error) {
	var res []string
	if err := c.do(ctx, http.MethodGet, "/api/species", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
