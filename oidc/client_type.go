// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"sort"
)

// Client type names.
const (
	TypeGeneric   = "generic"
	TypeGoogle    = "google"
	TypeMicrosoft = "microsoft"
)

// ClientType supplies the provider specific parts of the authorization code
// flow: where to send the user and where to exchange and fetch.
type ClientType interface {
	// Type returns the client type name.
	Type() string

	// AuthorizationUrl returns the provider's authorization endpoint.
	AuthorizationUrl() string

	// TokenUrl returns the provider's token endpoint.
	TokenUrl() string

	// UserInfoUrl returns the provider's userinfo endpoint.
	UserInfoUrl() string

	// AuthParams returns additional parameters for the authorization
	// request. It may be empty but it's never nil.
	AuthParams() map[string]string
}

// KeySetProvider is implemented by a ClientType which publishes a JSON Web
// Key Set that can be used to verify the signature of its id_tokens.
type KeySetProvider interface {
	// KeySetUrl returns the JWKS URL, or an empty string when there isn't one.
	KeySetUrl() string

	// Issuer returns the expected "iss" of the provider's id_tokens, or an
	// empty string when it isn't known and "iss" isn't checked.
	Issuer() string
}

// NewClientType creates one of the supported client types by name. The
// settings are the type's configuration:
//
//   - generic: authorization_endpoint, token_endpoint, userinfo_endpoint and
//     an optional jwks_uri and issuer
//   - google: none
//   - microsoft: an optional tenant and issuer
func NewClientType(typ string, settings map[string]string) (ClientType, error) {
	const op = "NewClientType"
	switch typ {
	case TypeGeneric:
		g, err := NewGeneric(
			settings["authorization_endpoint"],
			settings["token_endpoint"],
			settings["userinfo_endpoint"],
			WithKeySetUrl(settings["jwks_uri"]),
			WithIssuer(settings["issuer"]),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return g, nil
	case TypeGoogle:
		return NewGoogle(), nil
	case TypeMicrosoft:
		return NewMicrosoft(WithTenant(settings["tenant"]), WithIssuer(settings["issuer"])), nil
	default:
		return nil, fmt.Errorf("%s: %q (supported: %v): %w", op, typ, ClientTypes(), ErrUnsupportedClientType)
	}
}

// ClientTypes returns the supported client type names, sorted.
func ClientTypes() []string {
	types := []string{TypeGeneric, TypeGoogle, TypeMicrosoft}
	sort.Strings(types)
	return types
}

// clientTypeOptions is the set of available options for the client types.
type clientTypeOptions struct {
	withKeySetUrl string
	withIssuer    string
	withTenant    string
}

func clientTypeDefaults() clientTypeOptions {
	return clientTypeOptions{
		withTenant: DefaultMicrosoftTenant,
	}
}

func getClientTypeOpts(opt ...Option) clientTypeOptions {
	opts := clientTypeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithKeySetUrl provides an optional JWKS URL for a Generic client type.
func WithKeySetUrl(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientTypeOptions); ok {
			o.withKeySetUrl = u
		}
	}
}

// WithIssuer provides an optional expected id_token issuer for a Generic or
// Microsoft client type.
func WithIssuer(iss string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientTypeOptions); ok {
			o.withIssuer = iss
		}
	}
}

// WithTenant provides an optional tenant id for a Microsoft client type. An
// empty tenant leaves the default in place.
func WithTenant(tenant string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientTypeOptions); ok && tenant != "" {
			o.withTenant = tenant
		}
	}
}
