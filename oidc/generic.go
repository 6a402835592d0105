// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Generic is a ClientType for any provider whose endpoints are configured
// explicitly.
type Generic struct {
	authorizationUrl string
	tokenUrl         string
	userInfoUrl      string
	keySetUrl        string
	issuer           string
}

var (
	_ ClientType     = (*Generic)(nil)
	_ KeySetProvider = (*Generic)(nil)
)

// NewGeneric creates a Generic client type. Every endpoint must be an
// absolute http or https URL.
//
// Supported options:
//   - WithKeySetUrl
//   - WithIssuer
func NewGeneric(authorizationUrl, tokenUrl, userInfoUrl string, opt ...Option) (*Generic, error) {
	const op = "NewGeneric"
	opts := getClientTypeOpts(opt...)
	var result *multierror.Error
	for _, e := range []struct{ name, u string }{
		{"authorization endpoint", authorizationUrl},
		{"token endpoint", tokenUrl},
		{"userinfo endpoint", userInfoUrl},
	} {
		if e.u == "" {
			result = multierror.Append(result, fmt.Errorf("%s: %s is empty: %w", op, e.name, ErrInvalidParameter))
			continue
		}
		if err := validateHttpUrl(e.u); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, e.name, err))
		}
	}
	if opts.withKeySetUrl != "" {
		if err := validateHttpUrl(opts.withKeySetUrl); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: jwks uri: %w", op, err))
		}
	}
	if opts.withIssuer != "" {
		if err := validateHttpUrl(opts.withIssuer); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: issuer: %w", op, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Generic{
		authorizationUrl: authorizationUrl,
		tokenUrl:         tokenUrl,
		userInfoUrl:      userInfoUrl,
		keySetUrl:        opts.withKeySetUrl,
		issuer:           opts.withIssuer,
	}, nil
}

func (g *Generic) Type() string             { return TypeGeneric }
func (g *Generic) AuthorizationUrl() string { return g.authorizationUrl }
func (g *Generic) TokenUrl() string         { return g.tokenUrl }
func (g *Generic) UserInfoUrl() string      { return g.userInfoUrl }
func (g *Generic) KeySetUrl() string        { return g.keySetUrl }
func (g *Generic) Issuer() string           { return g.issuer }

// AuthParams returns no additional parameters.
func (g *Generic) AuthParams() map[string]string { return map[string]string{} }
