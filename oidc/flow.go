// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hashicorp/cap-connect/jwt"
)

// maxUserInfoBytes bounds the size of a userinfo response.
const maxUserInfoBytes = 1 << 20

// Flow drives the authorization code flow for one provider: it builds the
// authorization request, exchanges the code for tokens, verifies the
// id_token and fetches the user's info. A Flow is immutable and safe for
// concurrent use; per user state lives in the TokenStore passed to it.
type Flow struct {
	config     *Config
	clientType ClientType
	client     *http.Client
	keySet     jwt.KeySet
	issuer     string
	observer   Observer
	now        func() time.Time
}

// NewFlow creates a Flow for the config and client type. When the client
// type publishes a JWKS (see KeySetProvider) the id_token signature is
// verified with it, unless WithKeySet is given.
//
// Supported options:
//   - WithHttpClient
//   - WithKeySet
//   - WithObserver
//   - WithNow
func NewFlow(c *Config, ct ClientType, opt ...Option) (*Flow, error) {
	const op = "NewFlow"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if ct == nil {
		return nil, fmt.Errorf("%s: client type is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getFlowOpts(opt...)

	client := opts.withHttpClient
	if client == nil {
		var err error
		if client, err = c.HttpClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	keySet := opts.withKeySet
	var issuer string
	if kp, ok := ct.(KeySetProvider); ok {
		issuer = kp.Issuer()
		if keySet == nil && kp.KeySetUrl() != "" {
			ks, err := jwt.NewJSONWebKeySet(context.Background(), kp.KeySetUrl(), jwt.WithHttpClient(client))
			if err != nil {
				return nil, fmt.Errorf("%s: unable to create key set: %w", op, err)
			}
			keySet = ks
		}
	}

	return &Flow{
		config:     c,
		clientType: ct,
		client:     client,
		keySet:     keySet,
		issuer:     issuer,
		observer:   opts.withObserver,
		now:        opts.withNowFunc,
	}, nil
}

// Config returns the flow's config.
func (f *Flow) Config() *Config { return f.config }

// ClientType returns the flow's client type.
func (f *Flow) ClientType() ClientType { return f.clientType }

// Label returns the provider's label, defaulting to the client type name.
func (f *Flow) Label() string {
	if f.config.Label != "" {
		return f.config.Label
	}
	return f.clientType.Type()
}

// BeginAuthorization starts an attempt: it creates the state and nonce
// tokens in the TokenStore and returns the request the user-agent must be
// redirected to. No request is made to the provider.
//
// Supported options:
//   - WithAuthParams
//   - WithUILocales
func (f *Flow) BeginAuthorization(ctx context.Context, ts *TokenStore, opt ...Option) (*AuthorizationRequest, error) {
	const op = "Flow.BeginAuthorization"
	if ts == nil {
		return nil, fmt.Errorf("%s: token store is nil: %w", op, ErrNilParameter)
	}
	opts := getBeginOpts(opt...)

	state, err := ts.create(ctx, StateTokenName)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create state: %w", op, err)
	}
	nonce, err := ts.create(ctx, NonceTokenName)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create nonce: %w", op, err)
	}
	if err := ts.save(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	scopes := f.config.catalog().ScopeList(f.config.Claims)
	extra := mergeParams(reservedAuthParams, f.clientType.AuthParams(), f.config.CustomAuthParams, opts.withAuthParams)
	if l := uiLocales(opts.withUILocales); l != "" {
		extra["ui_locales"] = l
	}
	authOpts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	authOpts = append(authOpts, paramOpts(extra)...)

	return &AuthorizationRequest{
		url:    f.oauth2Config(scopes).AuthCodeURL(state, authOpts...),
		scopes: scopes,
		State:  state,
		Nonce:  nonce,
	}, nil
}

// ExchangeCode exchanges an authorization code for tokens at the provider's
// token endpoint. Any failure wraps ErrExchangeFailed; an error response
// from the provider is returned as a *TokenError.
func (f *Flow) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	const op = "Flow.ExchangeCode"
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	extra := mergeParams(reservedTokenParams, f.config.CustomTokenParams)

	start := f.now()
	tk, err := f.oauth2Config(nil).Exchange(HttpClientContext(ctx, f.client), code, paramOpts(extra)...)
	f.observer.ObserveProviderRequest(f.clientType.Type(), EndpointToken, f.now().Sub(start), err)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			if te := parseTokenError(status, re.Body); te != nil {
				return nil, fmt.Errorf("%s: %w", op, te)
			}
			return nil, fmt.Errorf("%s: token endpoint returned %d: %w", op, status, ErrExchangeFailed)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExchangeFailed, err)
	}
	if tk.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExchangeFailed, ErrMissingAccessToken)
	}

	ts := &TokenSet{
		AccessToken:  AccessToken(tk.AccessToken),
		RefreshToken: RefreshToken(tk.RefreshToken),
		TokenType:    tk.TokenType,
		Expiry:       tk.Expiry,
	}
	if raw, ok := tk.Extra("id_token").(string); ok {
		ts.IdToken = IdToken(raw)
	}
	return ts, nil
}

// UserInfo fetches the user's claims from the provider's userinfo endpoint
// with the access token. Any failure wraps ErrUserInfoFailed.
func (f *Flow) UserInfo(ctx context.Context, t AccessToken) (UserInfo, error) {
	const op = "Flow.UserInfo"
	if t == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.clientType.UserInfoUrl(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrUserInfoFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(t))
	req.Header.Set("Accept", "application/json")

	start := f.now()
	resp, err := f.client.Do(req)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}
	f.observer.ObserveProviderRequest(f.clientType.Type(), EndpointUserInfo, f.now().Sub(start), err)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrUserInfoFailed, err)
	}
	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%s: unable to decode response: %w: %w", op, ErrUserInfoFailed, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%s: response is empty: %w", op, ErrUserInfoFailed)
	}
	return info, nil
}

// VerifyIdToken verifies the id_token returned with a code exchange and
// returns its claims. The signature is verified when the flow has a key
// set. The "nonce" claim is confirmed against the nonce token, which is
// consumed whatever the outcome. The "aud" claim must contain the client id
// and the token must not be expired. When the client type has an issuer the
// "iss" claim must match it.
//
// Session faults wrap ErrSessionUnavailable; every other failure means the
// token must not be trusted.
func (f *Flow) VerifyIdToken(ctx context.Context, ts *TokenStore, t IdToken) (map[string]interface{}, error) {
	const op = "Flow.VerifyIdToken"
	if ts == nil {
		return nil, fmt.Errorf("%s: token store is nil: %w", op, ErrNilParameter)
	}
	claims, err := f.verifyIdToken(ctx, ts, t)
	if sErr := ts.save(ctx); sErr != nil {
		return nil, fmt.Errorf("%s: %w", op, sErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// verifyIdToken verifies the id_token without saving the session.
func (f *Flow) verifyIdToken(ctx context.Context, ts *TokenStore, t IdToken) (map[string]interface{}, error) {
	var claims map[string]interface{}
	var err error
	switch {
	case t == "":
		err = ErrMissingIdToken
	case f.keySet != nil:
		if claims, err = f.keySet.VerifySignature(ctx, string(t)); err != nil {
			err = fmt.Errorf("%w: %w", ErrIdTokenVerificationFailed, err)
		}
	default:
		err = t.Claims(&claims)
	}
	if err != nil {
		if dErr := ts.remove(ctx, NonceTokenName); dErr != nil {
			return nil, dErr
		}
		return nil, err
	}

	nonce, _ := claims["nonce"].(string)
	ok, err := ts.confirm(ctx, NonceTokenName, nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("nonce does not match: %w", ErrInvalidNonce)
	}
	if !audienceContains(claims["aud"], f.config.ClientId) {
		return nil, fmt.Errorf("audience does not contain client id: %w", ErrInvalidAudience)
	}
	if f.issuer != "" {
		iss, _ := claims["iss"].(string)
		if !issuerMatches(iss, f.issuer) {
			return nil, fmt.Errorf("issuer %q is not %q: %w", iss, f.issuer, ErrInvalidIssuer)
		}
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("exp claim is missing: %w", ErrIdTokenVerificationFailed)
	}
	if time.Unix(int64(exp), 0).Add(expirySkew).Before(f.now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

func (f *Flow) oauth2Config(scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.config.ClientId,
		ClientSecret: string(f.config.ClientSecret),
		RedirectURL:  f.config.RedirectUrl,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.clientType.AuthorizationUrl(),
			TokenURL:  f.clientType.TokenUrl(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// paramOpts converts params to oauth2 options in a stable order.
func paramOpts(params map[string]string) []oauth2.AuthCodeOption {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, params[k]))
	}
	return opts
}

// issuerMatches compares issuers ignoring a trailing slash and a missing
// https scheme, since some providers (Google) issue both forms.
func issuerMatches(iss, want string) bool {
	norm := func(s string) string {
		return strings.TrimSuffix(strings.TrimPrefix(s, "https://"), "/")
	}
	return iss != "" && norm(iss) == norm(want)
}

func audienceContains(aud interface{}, clientId string) bool {
	switch v := aud.(type) {
	case string:
		return v == clientId
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok && s == clientId {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == clientId {
				return true
			}
		}
	}
	return false
}

// flowOptions is the set of available options for Flow
type flowOptions struct {
	withHttpClient *http.Client
	withKeySet     jwt.KeySet
	withObserver   Observer
	withNowFunc    func() time.Time
}

func flowDefaults() flowOptions {
	return flowOptions{
		withObserver: nopObserver{},
		withNowFunc:  time.Now,
	}
}

func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withObserver == nil {
		opts.withObserver = nopObserver{}
	}
	if opts.withNowFunc == nil {
		opts.withNowFunc = time.Now
	}
	return opts
}

// WithHttpClient provides an optional http client for requests to the
// provider, replacing the one built from the Config.
func WithHttpClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withHttpClient = c
		}
	}
}

// WithKeySet provides an optional key set to verify id_token signatures.
func WithKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withKeySet = ks
		}
	}
}
