// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrUnsupportedClientType     = errors.New("unsupported client type")
	ErrUnknownClaim              = errors.New("unknown claim")
	ErrTokenGeneratorFailed      = errors.New("token generation failed")
	ErrSessionUnavailable        = errors.New("session unavailable")
	ErrExchangeFailed            = errors.New("code exchange failed")
	ErrMissingAccessToken        = errors.New("access_token is missing")
	ErrMissingIdToken            = errors.New("id_token is missing")
	ErrMalformedIdToken          = errors.New("id_token is malformed")
	ErrIdTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrInvalidIssuer             = errors.New("invalid issuer")
	ErrExpiredToken              = errors.New("token is expired")
	ErrUserInfoFailed            = errors.New("user info failed")
	ErrTokenSinkFailed           = errors.New("token sink failed")
)

// TokenError is an error response returned by a provider's token endpoint.
// See: https://datatracker.ietf.org/doc/html/rfc6749#section-5.2
//
// TokenError unwraps to ErrExchangeFailed.
type TokenError struct {
	// StatusCode is the http status code of the token endpoint's response.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}

// Error satisfies the error interface.
func (e *TokenError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("token endpoint error (%d): %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("token endpoint error (%d): %s: %s", e.StatusCode, e.Code, e.Description)
}

// Unwrap returns ErrExchangeFailed so callers can use errors.Is.
func (e *TokenError) Unwrap() error {
	return ErrExchangeFailed
}

// parseTokenError attempts to decode an RFC 6749 error body, which is JSON
// for compliant providers and form encoded for a few older ones. It returns
// nil when the body carries no error code.
func parseTokenError(statusCode int, body []byte) *TokenError {
	te := &TokenError{StatusCode: statusCode}
	if err := json.Unmarshal(body, te); err == nil && te.Code != "" {
		return te
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil || vals.Get("error") == "" {
		return nil
	}
	te.Code = vals.Get("error")
	te.Description = vals.Get("error_description")
	te.Uri = vals.Get("error_uri")
	return te
}
