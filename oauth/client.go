// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/lib/netutil"
	"github.com/vcstatus/vcstatus/lib/secret"
)

// DefaultTokenURL is the host's OAuth2 token endpoint.
const DefaultTokenURL = "https://discord.com/api/oauth2/token"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// TokenURL is the token endpoint. Defaults to DefaultTokenURL.
	TokenURL string

	// ClientID and ClientSecret authenticate the application with
	// HTTP basic auth. Both are required. The Client does not take
	// ownership of ClientSecret; the caller closes it after the Client
	// is no longer used.
	ClientID     string
	ClientSecret *secret.Buffer

	// RedirectURI is sent with code exchanges. It must match the
	// redirect registered for the application. Defaults to
	// "http://localhost".
	RedirectURI string

	// HTTPClient defaults to an http.Client with a 15 second timeout.
	HTTPClient *http.Client

	// MaxRetries bounds retries after the first attempt. Zero disables
	// retrying; negative values are treated as zero.
	MaxRetries int

	// InitialInterval is the first retry delay before jitter. Defaults
	// to 500ms.
	InitialInterval time.Duration

	// Clock drives retry delays. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client calls the token endpoint.
type Client struct {
	tokenURL        string
	clientID        string
	clientSecret    *secret.Buffer
	redirectURI     string
	httpClient      *http.Client
	maxRetries      int
	initialInterval time.Duration
	clock           clock.Clock
	logger          *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ClientID == "" {
		return nil, errors.New("oauth: client id is required")
	}
	if config.ClientSecret == nil || config.ClientSecret.Len() == 0 {
		return nil, errors.New("oauth: client secret is required")
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	parsed, err := url.Parse(tokenURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return nil, fmt.Errorf("oauth: invalid token URL %q", tokenURL)
	}

	redirectURI := config.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	initialInterval := config.InitialInterval
	if initialInterval <= 0 {
		initialInterval = 500 * time.Millisecond
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		tokenURL:        tokenURL,
		clientID:        config.ClientID,
		clientSecret:    config.ClientSecret,
		redirectURI:     redirectURI,
		httpClient:      httpClient,
		maxRetries:      max(config.MaxRetries, 0),
		initialInterval: initialInterval,
		clock:           clk,
		logger:          logger,
	}, nil
}

// ExchangeCode trades an authorization code for a token pair. Failures
// are TokenFetch faults wrapping the cause.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenPair, error) {
	if code == "" {
		return nil, fault.New(fault.TokenFetch, "empty authorization code")
	}
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}
	pair, err := c.requestToken(ctx, "authorization_code", form)
	if err != nil {
		return nil, fault.Wrap(fault.TokenFetch, err, "exchanging authorization code")
	}
	return pair, nil
}

// Refresh trades a refresh token for a new pair. The caller keeps
// ownership of refreshToken. Failures are RefreshToken faults wrapping
// the cause.
func (c *Client) Refresh(ctx context.Context, refreshToken *secret.Buffer) (*TokenPair, error) {
	if refreshToken == nil || refreshToken.Len() == 0 {
		return nil, fault.New(fault.RefreshToken, "empty refresh token")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken.String()},
	}
	pair, err := c.requestToken(ctx, "refresh_token", form)
	if err != nil {
		return nil, fault.Wrap(fault.RefreshToken, err, "refreshing access token")
	}
	return pair, nil
}

// requestToken POSTs form, retrying transient failures.
func (c *Client) requestToken(ctx context.Context, grant string, form url.Values) (*TokenPair, error) {
	body := form.Encode()
	attempt := 0
	var pair *TokenPair

	operation := func() error {
		attempt++
		result, err := c.post(ctx, body)
		if err != nil {
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		pair = result
		return nil
	}
	notify := func(err error, delay time.Duration) {
		c.logger.Warn("token request failed, retrying",
			"grant_type", grant,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	policy := c.newBackOff(ctx)
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, &clockTimer{clock: c.clock}); err != nil {
		return nil, err
	}
	c.logger.Debug("token request succeeded", "grant_type", grant, "attempts", attempt)
	return pair, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = c.initialInterval
	exponential.MaxInterval = 30 * time.Second
	exponential.MaxElapsedTime = 0
	exponential.Clock = c.clock
	exponential.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(c.maxRetries)), ctx)
}

// post performs one request and parses the response.
func (c *Client) post(ctx context.Context, body string) (*TokenPair, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	request.SetBasicAuth(c.clientID, c.clientSecret.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, endpointError(response)
	}

	var decoded tokenResponse
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return nil, &decodeError{err: err}
	}
	pair, err := decoded.pair()
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return pair, nil
}

func endpointError(response *http.Response) *EndpointError {
	result := &EndpointError{StatusCode: response.StatusCode}
	body, _ := netutil.ReadResponse(response.Body)
	var parsed EndpointError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Code != "" {
		result.Code = parsed.Code
		result.Description = parsed.Description
		return result
	}
	result.Body = strings.TrimSpace(string(body))
	return result
}

// decodeError marks an unparseable 2xx body. It is never retried.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decoding token response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// retryable reports whether err from one attempt may succeed on retry:
// transport errors and temporary endpoint errors, unless ctx is done.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var endpointError *EndpointError
	if errors.As(err, &endpointError) {
		return endpointError.Temporary()
	}
	var decode *decodeError
	return !errors.As(err, &decode)
}

// clockTimer adapts clock.Clock to backoff.Timer.
type clockTimer struct {
	clock   clock.Clock
	channel <-chan time.Time
}

func (t *clockTimer) Start(duration time.Duration) { t.channel = t.clock.After(duration) }
func (t *clockTimer) Stop()                        {}
func (t *clockTimer) C() <-chan time.Time          { return t.channel }
