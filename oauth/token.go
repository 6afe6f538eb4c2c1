// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/vcstatus/vcstatus/lib/secret"
)

// TokenPair is one successful token endpoint response. RefreshToken is
// nil when the endpoint did not issue one. Close releases both buffers.
type TokenPair struct {
	AccessToken  *secret.Buffer
	RefreshToken *secret.Buffer
	TokenType    string
	Scope        string
	ExpiresIn    time.Duration
}

// Close zeroes and releases the token buffers.
func (p *TokenPair) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.AccessToken != nil {
		errs = append(errs, p.AccessToken.Close())
	}
	if p.RefreshToken != nil {
		errs = append(errs, p.RefreshToken.Close())
	}
	return errors.Join(errs...)
}

// tokenResponse is the endpoint's JSON body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (r *tokenResponse) pair() (*TokenPair, error) {
	if r.AccessToken == "" {
		return nil, errors.New("response has no access_token")
	}
	access, err := secret.NewFromString(r.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("protecting access token: %w", err)
	}
	pair := &TokenPair{
		AccessToken: access,
		TokenType:   r.TokenType,
		Scope:       r.Scope,
		ExpiresIn:   time.Duration(r.ExpiresIn) * time.Second,
	}
	if r.RefreshToken != "" {
		pair.RefreshToken, err = secret.NewFromString(r.RefreshToken)
		if err != nil {
			access.Close()
			return nil, fmt.Errorf("protecting refresh token: %w", err)
		}
	}
	r.AccessToken = ""
	r.RefreshToken = ""
	return pair, nil
}

// EndpointError is a non-2xx response from the token endpoint. Code and
// Description come from the standard OAuth2 error body when present.
type EndpointError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Body        string `json:"-"`
}

func (e *EndpointError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token endpoint: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token endpoint: HTTP %d: %s", e.StatusCode, e.Code)
	case e.Body != "":
		return fmt.Sprintf("token endpoint: HTTP %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("token endpoint: HTTP %d", e.StatusCode)
	}
}

// Temporary reports whether retrying the same request may succeed.
func (e *EndpointError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsInvalidGrant reports whether err is the endpoint rejecting the
// code or refresh token, which means the user has to authorize again.
func IsInvalidGrant(err error) bool {
	var endpointError *EndpointError
	return errors.As(err, &endpointError) && endpointError.Code == "invalid_grant"
}
