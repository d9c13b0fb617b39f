package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. https://journal.example.com.
	// An empty BaseURL means local-only.
	BaseURL string

	// LocalOnly forces local-only mode even when BaseURL is set.
	LocalOnly bool

	// Session is the rj-session token from a previous Login.
	Session string

	// Timeout bounds each request (default: 15s).
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// Logger receives request failures. Nil logs to stderr.
	Logger *log.Logger
}

// Client implements Remote over HTTP.
type Client struct {
	base      string
	localOnly bool
	http      *http.Client
	logger    *log.Logger

	mu      sync.RWMutex
	session string
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		base:      base,
		localOnly: cfg.LocalOnly || base == "",
		http:      hc,
		logger:    cfg.Logger,
		session:   cfg.Session,
	}
}

// LocalOnly implements Remote.
func (c *Client) LocalOnly() bool {
	return c.localOnly
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// Session returns the current session token.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the session token.
func (c *Client) SetSession(token string) {
	c.mu.Lock()
	c.session = token
	c.mu.Unlock()
}

// FetchRemote implements Remote.
func (c *Client) FetchRemote(ctx context.Context) (*schema.Document, error) {
	if c.localOnly {
		return nil, nil
	}

	resp, err := c.do(ctx, http.MethodGet, DataPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote document: %w", err)
	}
	doc, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("remote document is invalid: %w", err)
	}
	return doc, nil
}

// PushRemote implements Remote.
func (c *Client) PushRemote(ctx context.Context, doc *schema.Document) error {
	if c.localOnly {
		return nil
	}

	data, err := schema.Marshal(doc)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, DataPath, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return statusError(resp)
	}
	return nil
}

// Login exchanges the password for a session token and keeps it.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	if c.base == "" {
		return "", fmt.Errorf("no server configured")
	}
	body, _ := json.Marshal(map[string]string{"password": password})
	resp, err := c.do(ctx, http.MethodPost, LoginPath, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrWrongPassword
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionName && ck.Value != "" {
			c.SetSession(ck.Value)
			return ck.Value, nil
		}
	}
	return "", ErrNoSession
}

// Logout tells the server to clear the session and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetSession("")
	if c.base == "" {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPost, LogoutPath, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Session(); tok != "" {
		req.AddCookie(&http.Cookie{Name: SessionName, Value: tok})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("%s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}
