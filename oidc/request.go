// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/hashicorp/cap-connect/oidc/internal/strutils"
)

// reservedAuthParams are set by the flow itself and are never taken from
// custom or client type parameters.
var reservedAuthParams = []string{
	"response_type",
	"redirect_uri",
	"client_id",
	"nonce",
	"state",
	"scope",
}

// reservedTokenParams are set by the flow itself and are never taken from
// custom token parameters.
var reservedTokenParams = []string{
	"grant_type",
	"code",
	"redirect_uri",
	"client_id",
	"client_secret",
}

// AuthorizationRequest is a single authorization attempt. It only lives as
// long as it takes to redirect the user-agent to Url().
type AuthorizationRequest struct {
	url    string
	scopes []string

	// State is the anti-forgery token sent as the "state" parameter.
	State string

	// Nonce is the replay protection token sent as the "nonce" parameter.
	Nonce string
}

// Url returns the provider authorization URL the user-agent must be
// redirected to.
func (r *AuthorizationRequest) Url() string { return r.url }

// Scopes returns the scopes that were requested.
func (r *AuthorizationRequest) Scopes() []string { return append([]string(nil), r.scopes...) }

// mergeParams combines parameter maps, later maps win, and drops any
// reserved key.
func mergeParams(reserved []string, params ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, p := range params {
		for k, v := range p {
			if strutils.StrListContains(reserved, k) {
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// beginOptions is the set of available options for Flow.BeginAuthorization
type beginOptions struct {
	withAuthParams map[string]string
	withUILocales  []language.Tag
}

func beginDefaults() beginOptions {
	return beginOptions{}
}

func getBeginOpts(opt ...Option) beginOptions {
	opts := beginDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAuthParams provides optional additional authorization request
// parameters for a single attempt. They win over the configured and client
// type parameters but can never override a protocol parameter.
func WithAuthParams(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*beginOptions); ok {
			o.withAuthParams = params
		}
	}
}

// WithUILocales provides optional preferred languages for the provider's
// user interface, sent as the "ui_locales" parameter.
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*beginOptions); ok {
			o.withUILocales = locales
		}
	}
}

func uiLocales(tags []language.Tag) string {
	l := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == language.Und {
			continue
		}
		l = append(l, t.String())
	}
	return strings.Join(strutils.RemoveDuplicatesStable(l, true), " ")
}
