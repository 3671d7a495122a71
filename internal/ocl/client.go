package ocl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"conceptid/internal/logging"
)

const maxErrorBody = 512

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the terminology API.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "ocl")
	}
}

// New creates a client for baseURL authenticating with token. Requests time
// out after timeout unless a custom HTTP client is supplied.
func New(baseURL, token string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ocl base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse ocl base url: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("ocl token required")
	}
	client := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(nil, "ocl"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ResolveURL turns a concept or page URL into an absolute URL. Relative
// values such as "/orgs/MSF/sources/S/concepts/1/" are joined to the base URL.
func (c *Client) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// ListConcepts returns every concept reachable from listURL, following
// "next" links in order. A bare JSON array is treated as the only page.
func (c *Client) ListConcepts(ctx context.Context, listURL string) ([]Concept, error) {
	var all []Concept
	next := c.ResolveURL(listURL)
	seen := make(map[string]struct{})
	pages := 0
	for next != "" {
		if _, dup := seen[next]; dup {
			c.logger.WarnContext(ctx, "listing next link repeats a fetched page",
				logging.String("url", next),
				logging.Int("page", pages),
				logging.String(logging.FieldEventType, "pagination_cycle"),
			)
			return nil, fmt.Errorf("list concepts page %d (%s): %w: next link repeats a fetched page", pages+1, next, ErrUnexpectedPage)
		}
		seen[next] = struct{}{}
		body, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		pages++
		concepts, following, err := decodePage(body)
		if err != nil {
			c.logger.WarnContext(ctx, "unexpected listing response",
				logging.String("url", next),
				logging.Int("page", pages),
				logging.Int("fetched", len(all)),
				logging.String(logging.FieldEventType, "pagination_unexpected"),
			)
			return nil, fmt.Errorf("list concepts page %d (%s): %w", pages, next, err)
		}
		all = append(all, concepts...)
		c.logger.DebugContext(ctx, "fetched concept page",
			logging.String("url", next),
			logging.Int("page", pages),
			logging.Int("count", len(concepts)),
		)
		if following == "" {
			break
		}
		next = c.ResolveURL(following)
	}
	return all, nil
}

func decodePage(body []byte) ([]Concept, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrUnexpectedPage)
	}
	switch trimmed[0] {
	case '[':
		var concepts []Concept
		if err := json.Unmarshal(trimmed, &concepts); err != nil {
			return nil, "", fmt.Errorf("decode concept list: %w", err)
		}
		return concepts, "", nil
	case '{':
		var env page
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, "", fmt.Errorf("decode concept page: %w", err)
		}
		if env.Results == nil {
			return nil, "", fmt.Errorf("%w: object without results", ErrUnexpectedPage)
		}
		next := ""
		if env.Next != nil {
			next = strings.TrimSpace(*env.Next)
		}
		return *env.Results, next, nil
	default:
		return nil, "", fmt.Errorf("%w: %.40s", ErrUnexpectedPage, trimmed)
	}
}

// GetConcept fetches the full concept record at conceptURL.
func (c *Client) GetConcept(ctx context.Context, conceptURL string) (*Concept, error) {
	body, err := c.do(ctx, http.MethodGet, c.ResolveURL(conceptURL), nil)
	if err != nil {
		return nil, err
	}
	var concept Concept
	if err := json.Unmarshal(body, &concept); err != nil {
		return nil, fmt.Errorf("decode concept %s: %w", conceptURL, err)
	}
	return &concept, nil
}

// UpdateExternalID replaces the external identifier of the concept at
// conceptURL. The id and names are resent because the server validates the
// full record on PUT.
func (c *Client) UpdateExternalID(ctx context.Context, conceptURL string, req UpdateRequest) error {
	if req.Names == nil {
		req.Names = []Name{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode update payload: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPut, c.ResolveURL(conceptURL), payload); err != nil {
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%s %s (latency=%v): %w", method, target, latency, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: snippet}
	}
	c.logger.DebugContext(ctx, "api request",
		logging.String("method", method),
		logging.String("url", target),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)
	return data, nil
}
