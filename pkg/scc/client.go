package scc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
)

// DefaultTimeout is the per-request timeout of the HTTP client.
const DefaultTimeout = 60 * time.Second

// retryAttempts bounds transient-failure retries per request.
const retryAttempts = 3

// Client fetches catalog data over HTTP with basic authentication.
type Client struct {
	baseURL  string
	username string
	password string
	identity string
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithIdentity sets the system identity sent with every request.
func WithIdentity(identity string) ClientOption {
	return func(c *Client) { c.identity = identity }
}

// NewClient creates a catalog client for one credential pair. Username
// and password may be empty for anonymous endpoints.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts implements Source.
func (c *Client) ListProducts(ctx context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	if err := c.getList(ctx, "/connect/organizations/products/unscoped", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRepositories implements Source.
func (c *Client) ListRepositories(ctx context.Context) ([]RepositoryRecord, error) {
	var out []RepositoryRecord
	if err := c.getList(ctx, "/connect/organizations/repositories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSubscriptions implements Source.
func (c *Client) ListSubscriptions(ctx context.Context) ([]SubscriptionRecord, error) {
	var out []SubscriptionRecord
	if err := c.getList(ctx, "/connect/organizations/subscriptions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders implements Source.
func (c *Client) ListOrders(ctx context.Context) ([]OrderRecord, error) {
	var out []OrderRecord
	if err := c.getList(ctx, "/connect/organizations/orders", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductTree implements Source.
func (c *Client) ProductTree(ctx context.Context) ([]TreeEdgeRecord, error) {
	var out []TreeEdgeRecord
	if err := c.getList(ctx, "/suma/product_tree.json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getList fetches a JSON list, retrying transient failures.
func (c *Client) getList(ctx context.Context, path string, v any) error {
	url := c.baseURL + path
	log := logging.FromContext(ctx)

	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.get(ctx, url) },
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// client errors (4xx) will not get better on retry
			var te *errors.TransportError
			if stderrors.As(err, &te) {
				return te.StatusCode == 0 || te.StatusCode >= 500
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n).Err(err).Str("url", url).Msg("Retrying catalog fetch")
		}),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewTransportError(path, c.username, 0,
			fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapTransport(url, c.username, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")
	if c.identity != "" {
		req.Header.Set("X-Correlation-Id", c.identity)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapTransport(url, c.username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTransportError(url, c.username, resp.StatusCode, nil)
	}
	return io.ReadAll(resp.Body)
}
