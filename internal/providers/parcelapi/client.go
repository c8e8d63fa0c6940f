// Package parcelapi is the client for the REST address-search provider
// (provider-A). Searches return zero, one, or many candidate matches; the
// precise APN endpoint resolves a known parcel directly.
package parcelapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"propertygate/internal/circuitbreaker"
	apperrors "propertygate/internal/common/errors"
	commonhttp "propertygate/internal/common/http"
	"propertygate/internal/common/logging"
	"propertygate/internal/models"
)

// TokenSource supplies a valid bearer token for each call
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds provider settings
type Config struct {
	// BaseURL is the provider API root
	BaseURL string
	// FeedID identifies the data feed contract and is sent with every search
	FeedID string
	// Timeout is the per-call HTTP timeout
	Timeout time.Duration
}

// Client calls the REST provider
type Client struct {
	config  Config
	client  *http.Client
	tokens  TokenSource
	breaker *circuitbreaker.Breaker
}

// NewClient creates a provider client sharing the given token source
func NewClient(config Config, tokens TokenSource) (*Client, error) {
	if config.BaseURL == "" {
		return nil, apperrors.ConfigError("provider base URL is required")
	}
	if tokens == nil {
		return nil, apperrors.ConfigError("token source is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config:  config,
		client:  commonhttp.NewHTTPClientWithTimeout(config.Timeout),
		tokens:  tokens,
		breaker: circuitbreaker.New("parcelapi", circuitbreaker.RESTConfig),
	}, nil
}

// SearchAddress runs the address search. The query is strict and
// residential-only by default; the provider may answer with a single
// profile, a candidate list, or an explicit no-match status.
func (c *Client) SearchAddress(ctx context.Context, query models.SearchQuery) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("addr", strings.TrimSpace(query.Street))
	params.Set("lastLine", lastLine(query))
	params.Set("clientReference", query.ClientReference)
	params.Set("options", "search_strict=Y;search_exclude_nonres=Y")
	if c.config.FeedID != "" {
		params.Set("feedId", c.config.FeedID)
	}

	return c.get(ctx, "/realestatedata/search", params)
}

// SearchByAPN runs the precise FIPS+APN lookup used to settle a resolved
// multi-match. Unlike the address search it identifies exactly one parcel.
func (c *Client) SearchByAPN(ctx context.Context, fips, apn, clientReference string) (map[string]interface{}, error) {
	if fips == "" || apn == "" {
		return nil, apperrors.ValidationError("fips and apn are required for the precise lookup")
	}

	params := url.Values{}
	params.Set("fips", fips)
	params.Set("apn", apn)
	params.Set("clientReference", clientReference)
	if c.config.FeedID != "" {
		params.Set("feedId", c.config.FeedID)
	}

	return c.get(ctx, "/realestatedata/search/apn", params)
}

// get performs an authenticated GET and decodes the JSON body into a tree
func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]interface{}, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.UpstreamError("failed to create search request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var tree map[string]interface{}
	err = c.breaker.Execute(ctx, func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apperrors.TimeoutError("provider search")
			}
			return apperrors.UpstreamError("provider request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return apperrors.UpstreamError("failed to read provider response", err)
		}

		if err := classifyStatus(resp.StatusCode, body); err != nil {
			return err
		}

		if err := json.Unmarshal(body, &tree); err != nil {
			return apperrors.ParseError("provider returned non-JSON payload", string(body))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithContext(ctx).Debug("provider search completed",
		logging.String("path", path),
	)

	return tree, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy. 5xx and
// 429 are transient; other 4xx are not and must surface immediately.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.AuthError(fmt.Sprintf("provider rejected credentials (status %d)", status), nil)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimitError("parcelapi")
	case status >= 500:
		return apperrors.UpstreamError(fmt.Sprintf("provider returned status %d", status), nil).
			WithContext("body", truncate(body))
	default:
		return apperrors.ValidationError(fmt.Sprintf("provider rejected request (status %d)", status)).
			WithContext("body", truncate(body))
	}
}

func truncate(body []byte) string {
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}

// lastLine renders the "city, state zip" line the provider expects
func lastLine(query models.SearchQuery) string {
	var b strings.Builder
	if city := strings.TrimSpace(query.City); city != "" {
		b.WriteString(city)
	}
	b.WriteString(", ")
	if state := strings.TrimSpace(query.State); state != "" {
		b.WriteString(state)
	}
	if zip := strings.TrimSpace(query.Zip); zip != "" {
		b.WriteString(" ")
		b.WriteString(zip)
	}
	return b.String()
}
