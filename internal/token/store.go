// Package token manages the OAuth2 bearer token shared by all concurrent
// enrichment requests against the REST provider.
//
// The store holds a single token and its expiry. Reads are cheap and
// lock-free on the hot path; refresh is single-flight so concurrent callers
// observing an expiring token share one refresh call instead of stampeding
// the token endpoint. A background refresher can renew the token shortly
// before expiry so refresh latency stays off the request's critical path.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"propertygate/internal/circuitbreaker"
	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
)

// Config holds token endpoint settings
type Config struct {
	// TokenURL is the provider's OAuth2 token endpoint
	TokenURL string
	// ClientID and ClientSecret are exchanged via HTTP Basic auth
	ClientID     string
	ClientSecret string
	// Skew is the safety margin subtracted from expiry; a token within
	// Skew of expiring is treated as already expired
	Skew time.Duration
	// DefaultTTL applies when the provider omits expires_in
	DefaultTTL time.Duration
}

// tokenResponse is the provider's token endpoint payload
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Store holds one bearer token and refreshes it on demand
type Store struct {
	config  Config
	client  *http.Client
	breaker *circuitbreaker.Breaker
	group   singleflight.Group

	mu        sync.RWMutex
	value     string
	expiresAt time.Time

	// now is injectable for tests
	now func() time.Time
}

// NewStore creates a token store. The HTTP client is shared with the
// provider client so connection pools are reused.
func NewStore(config Config, client *http.Client) (*Store, error) {
	if config.TokenURL == "" {
		return nil, apperrors.ConfigError("token_url is required")
	}
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, apperrors.ConfigError("client credentials are required")
	}
	if config.Skew <= 0 {
		config.Skew = 120 * time.Second
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 600 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Store{
		config:  config,
		client:  client,
		breaker: circuitbreaker.New("oauth-token", circuitbreaker.OAuthConfig),
		now:     time.Now,
	}, nil
}

// Token returns a bearer token with at least Skew of remaining lifetime,
// refreshing if necessary. Refresh failures surface as auth errors and are
// not retried here; the caller decides whether to retry the enclosing
// operation.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	value, ok := s.valid()
	s.mu.RUnlock()
	if ok {
		return value, nil
	}

	return s.refresh(ctx)
}

// valid reports the cached token when its remaining lifetime clears the
// skew buffer. Callers must hold at least the read lock.
func (s *Store) valid() (string, bool) {
	if s.value != "" && s.now().Before(s.expiresAt.Add(-s.config.Skew)) {
		return s.value, true
	}
	return "", false
}

// refresh performs the client-credentials exchange, deduplicated so only
// one refresh HTTP call is in flight at a time.
func (s *Store) refresh(ctx context.Context) (string, error) {
	value, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		// A racing caller may have refreshed while we queued
		s.mu.RLock()
		value, ok := s.valid()
		s.mu.RUnlock()
		if ok {
			return value, nil
		}

		resp, err := s.exchange(ctx)
		if err != nil {
			return "", err
		}

		ttl := s.config.DefaultTTL
		if resp.ExpiresIn > 0 {
			ttl = time.Duration(resp.ExpiresIn) * time.Second
		}

		s.mu.Lock()
		s.value = resp.AccessToken
		s.expiresAt = s.now().Add(ttl)
		s.mu.Unlock()

		logging.Debug("bearer token refreshed",
			logging.Duration("ttl", ttl),
		)

		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// exchange POSTs the client-credentials grant with HTTP Basic auth
func (s *Store) exchange(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.AuthError("failed to create token request", err)
	}

	req.SetBasicAuth(s.config.ClientID, s.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokenResp tokenResponse
	err = s.breaker.Execute(ctx, func() error {
		resp, err := s.client.Do(req)
		if err != nil {
			return apperrors.AuthError("token request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return apperrors.AuthError("failed to read token response", err)
		}

		if resp.StatusCode != http.StatusOK {
			return apperrors.AuthError(
				fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil,
			).WithContext("body", string(body))
		}

		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return apperrors.AuthError("malformed token response", err)
		}

		if tokenResp.AccessToken == "" {
			return apperrors.AuthError("no access token in response", nil)
		}

		return nil
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeAuth) {
			return nil, err
		}
		return nil, apperrors.AuthError("token exchange failed", err)
	}

	return &tokenResp, nil
}

// StartProactiveRefresh runs a background loop that renews the token when
// its remaining lifetime drops below the skew buffer. Returns when ctx is
// cancelled. Refresh failures here are logged only; the next caller will
// retry through the normal path.
func (s *Store) StartProactiveRefresh(ctx context.Context) {
	for {
		s.mu.RLock()
		expiresAt := s.expiresAt
		hasToken := s.value != ""
		s.mu.RUnlock()

		var wait time.Duration
		if !hasToken {
			// Nothing to renew yet; check again shortly
			wait = s.config.Skew / 2
		} else {
			wait = expiresAt.Add(-s.config.Skew).Sub(s.now())
			if wait <= 0 {
				// Already inside the skew window, usually because the
				// previous refresh failed; pace the retries
				wait = s.config.Skew / 2
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !hasToken {
			continue
		}

		if _, err := s.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn("proactive token refresh failed", logging.Err(err))
		}
	}
}

// Info returns token metadata for the stats endpoint. The token value is
// never exposed.
func (s *Store) Info() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := map[string]interface{}{
		"has_token": s.value != "",
	}
	if !s.expiresAt.IsZero() {
		info["expires_at"] = s.expiresAt
		info["remaining_seconds"] = int(s.expiresAt.Sub(s.now()).Seconds())
	}
	return info
}
