// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"time"
)

// AccessToken is an oauth access_token.
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token.
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token.
func (t AccessToken) String() string { return RedactedAccessToken }

// MarshalJSON will redact the token.
func (t AccessToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedAccessToken) }

// RefreshToken is an oauth refresh_token.
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token.
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token.
func (t RefreshToken) String() string { return RedactedRefreshToken }

// MarshalJSON will redact the token.
func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedRefreshToken) }

// TokenSet is the result of a successful code exchange. The access token is
// always present, the rest depend on the provider.
type TokenSet struct {
	AccessToken  AccessToken  `json:"access_token"`
	RefreshToken RefreshToken `json:"refresh_token,omitempty"`
	IdToken      IdToken      `json:"id_token,omitempty"`
	TokenType    string       `json:"token_type,omitempty"`
	Expiry       time.Time    `json:"expiry,omitempty"`
}

const expirySkew = 10 * time.Second

// Expired reports whether the access token has expired (with a small skew).
// A TokenSet without an expiry never expires.
func (t *TokenSet) Expired(now time.Time) bool {
	if t == nil || t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(now.Add(expirySkew))
}

// TokenSink receives the tokens of every successful authentication, keyed by
// the client type name. It's how a host keeps access and refresh tokens to
// call provider APIs on the user's behalf.
type TokenSink interface {
	StoreTokens(ctx context.Context, clientType string, t *TokenSet) error
}
