// Package titlewire is the client for the legacy asynchronous title-data
// provider (provider-B). The protocol is three distinct calls: create a
// service request, poll its status until a completion marker appears, then
// fetch the result payload. Responses are semi-structured XML, decoded into
// map trees for the normalizer.
package titlewire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"

	"propertygate/internal/circuitbreaker"
	apperrors "propertygate/internal/common/errors"
	commonhttp "propertygate/internal/common/http"
	"propertygate/internal/fieldpath"
	"propertygate/internal/models"
)

// Config holds provider settings
type Config struct {
	BaseURL   string
	UserID    string
	Password  string
	ServiceID string
	Timeout   time.Duration
}

// Client calls the legacy provider
type Client struct {
	config  Config
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewClient creates a legacy provider client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, apperrors.ConfigError("provider base URL is required")
	}
	if config.UserID == "" || config.Password == "" {
		return nil, apperrors.ConfigError("provider credentials are required")
	}
	if config.ServiceID == "" {
		return nil, apperrors.ConfigError("service identifier is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}

	return &Client{
		config:  config,
		client:  commonhttp.NewHTTPClientWithTimeout(config.Timeout),
		breaker: circuitbreaker.New("titlewire", circuitbreaker.PollingConfig),
	}, nil
}

// CreateRequest submits the service request for an address and returns the
// provider-assigned request identifier. The identifier is the first
// numeric-looking leaf in the response that is not an address or echo
// field; the provider does not document a stable element name for it.
func (c *Client) CreateRequest(ctx context.Context, query models.SearchQuery) (string, error) {
	params := url.Values{}
	params.Set("userID", c.config.UserID)
	params.Set("password", c.config.Password)
	params.Set("serviceType", c.config.ServiceID)
	params.Set("address", query.Street)
	params.Set("city", query.City)
	params.Set("state", query.State)
	params.Set("zip", query.Zip)
	params.Set("customerRef", query.ClientReference)

	tree, err := c.call(ctx, "/CreateService", params)
	if err != nil {
		return "", err
	}

	if errText := providerError(tree); errText != "" {
		return "", apperrors.UpstreamError("create request rejected", nil).
			WithContext("provider_error", errText).WithCode("create_failed")
	}

	id := extractRequestID(tree, query)
	if id == "" {
		return "", apperrors.ParseError("no request id in create response", fmt.Sprintf("%v", tree))
	}

	return id, nil
}

// CheckStatus polls the request status. Completion is signalled by a status
// marker containing "Complete"; the result payload is NOT included and must
// be fetched separately.
func (c *Client) CheckStatus(ctx context.Context, requestID string) (bool, string, error) {
	params := url.Values{}
	params.Set("userID", c.config.UserID)
	params.Set("password", c.config.Password)
	params.Set("requestID", requestID)

	tree, err := c.call(ctx, "/RequestSummary", params)
	if err != nil {
		return false, "", err
	}

	status := fieldpath.Extract(tree,
		"RequestSummary.Status",
		"RequestSummaries.RequestSummary.Status",
		"Response.Status",
		"Status",
	)

	return strings.Contains(status, "Complete"), status, nil
}

// FetchResult retrieves the result payload for a completed request
func (c *Client) FetchResult(ctx context.Context, requestID string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("userID", c.config.UserID)
	params.Set("password", c.config.Password)
	params.Set("requestID", requestID)

	tree, err := c.call(ctx, "/GetRequestResult", params)
	if err != nil {
		return nil, err
	}

	if errText := providerError(tree); errText != "" {
		return nil, apperrors.UpstreamError("result fetch rejected", nil).
			WithContext("provider_error", errText)
	}

	return tree, nil
}

// call POSTs form params and decodes the XML body into a map tree
func (c *Client) call(ctx context.Context, path string, params url.Values) (map[string]interface{}, error) {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, apperrors.UpstreamError("failed to create provider request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/xml")

	var tree map[string]interface{}
	err = c.breaker.Execute(ctx, func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apperrors.TimeoutError("legacy provider call")
			}
			return apperrors.UpstreamError("legacy provider request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return apperrors.UpstreamError("failed to read provider response", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return apperrors.RateLimitError("titlewire")
		case resp.StatusCode >= 500:
			return apperrors.UpstreamError(fmt.Sprintf("provider returned status %d", resp.StatusCode), nil)
		case resp.StatusCode >= 400:
			return apperrors.ValidationError(fmt.Sprintf("provider rejected request (status %d)", resp.StatusCode))
		}

		m, err := mxj.NewMapXml(body)
		if err != nil {
			return apperrors.ParseError("provider returned malformed XML", string(body))
		}
		tree = map[string]interface{}(m)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// providerError pulls the provider's error text out of a response tree
func providerError(tree map[string]interface{}) string {
	return fieldpath.Extract(tree,
		"Response.Error",
		"Response.ErrDescription",
		"Error.Description",
		"Error",
	)
}

// extractRequestID scans the decoded tree for the request identifier:
// the first numeric-looking leaf whose element name is not address-like and
// whose value does not merely echo the query. Leaves with id-like names win
// over positional order; traversal is key-sorted so the scan is
// deterministic.
func extractRequestID(tree map[string]interface{}, query models.SearchQuery) string {
	type leaf struct {
		key   string
		value string
	}
	var leaves []leaf

	var walk func(prefix string, node interface{})
	walk = func(prefix string, node interface{}) {
		switch v := node.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(k, v[k])
			}
		case []interface{}:
			for _, item := range v {
				walk(prefix, item)
			}
		case string:
			leaves = append(leaves, leaf{key: prefix, value: strings.TrimSpace(v)})
		}
	}
	walk("", tree)

	echoes := map[string]bool{
		strings.TrimSpace(query.Zip):             true,
		strings.TrimSpace(query.Street):          true,
		strings.TrimSpace(query.ClientReference): true,
	}

	candidate := ""
	for _, l := range leaves {
		if !numeric(l.value) {
			continue
		}
		if addressLike(l.key) || echoes[l.value] {
			continue
		}
		if idLike(l.key) {
			return l.value
		}
		if candidate == "" {
			candidate = l.value
		}
	}
	return candidate
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func addressLike(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range []string{"address", "street", "zip", "city", "state", "apn", "fips"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func idLike(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "requestid") || strings.Contains(k, "id") || strings.Contains(k, "request")
}
