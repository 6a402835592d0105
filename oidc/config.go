// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/cap-connect/oidc/internal/strutils"
	sdkHttp "github.com/hashicorp/cap-connect/sdk/http"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

const (
	// DefaultSuccessUrl is where an authenticated user is sent when no
	// success URL is configured.
	DefaultSuccessUrl = "/user"

	// DefaultFailureUrl is where a user is sent after a cancelled, rejected
	// or failed attempt when no failure URL is configured.
	DefaultFailureUrl = "/user/login"

	// MaxTimeout is the upper bound for a provider request timeout.
	MaxTimeout = 30 * time.Second
)

// Config represents the relying party configuration for a single provider.
// Provider specific settings (endpoints, tenant) are carried by the
// ClientType the Config is paired with.
type Config struct {
	// ClientId is the relying party id.
	ClientId string `json:"client_id"`

	// ClientSecret is the relying party secret.
	ClientSecret ClientSecret `json:"client_secret"`

	// Label is a human readable name for the provider, used in user facing
	// messages and logs.
	Label string `json:"label,omitempty"`

	// Claims is the list of enabled claim ids. Every id must be known to the
	// ClaimsCatalog. The scopes to request are derived from it.
	Claims []string `json:"claims,omitempty"`

	// ClaimsCatalog is the catalog Claims are looked up in, it defaults to
	// DefaultClaims.
	ClaimsCatalog *ClaimsCatalog `json:"-"`

	// RedirectUrl is the URL where the provider will send the authentication
	// response. It must be registered with the provider.
	RedirectUrl string `json:"redirect_url"`

	// SuccessUrl is where the user is sent after authenticating.
	SuccessUrl string `json:"success_url,omitempty"`

	// FailureUrl is where the user is sent after a failed attempt.
	FailureUrl string `json:"failure_url,omitempty"`

	// CustomAuthParams are added to the authorization request. They can
	// never override a protocol parameter.
	CustomAuthParams map[string]string `json:"custom_auth_params,omitempty"`

	// CustomTokenParams are added to the token request. They can never
	// override a protocol parameter.
	CustomTokenParams map[string]string `json:"custom_token_params,omitempty"`

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string `json:"provider_ca,omitempty"`

	// Timeout bounds each request to the provider, it defaults to MaxTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Logger is used by the Flow and Validator; it defaults to a null logger.
	Logger hclog.Logger `json:"-"`
}

// NewConfig composes a new config for a provider.
//
// Supported options:
//   - WithClaims
//   - WithClaimsCatalog
//   - WithLabel
//   - WithSuccessUrl
//   - WithFailureUrl
//   - WithCustomAuthParams
//   - WithCustomTokenParams
//   - WithProviderCA
//   - WithTimeout
//   - WithLogger
func NewConfig(clientId string, clientSecret ClientSecret, redirectUrl string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientId:          clientId,
		ClientSecret:      clientSecret,
		Label:             opts.withLabel,
		Claims:            opts.withClaims,
		ClaimsCatalog:     opts.withClaimsCatalog,
		RedirectUrl:       redirectUrl,
		SuccessUrl:        opts.withSuccessUrl,
		FailureUrl:        opts.withFailureUrl,
		CustomAuthParams:  opts.withCustomAuthParams,
		CustomTokenParams: opts.withCustomTokenParams,
		ProviderCA:        opts.withProviderCA,
		Timeout:           opts.withTimeout,
		Logger:            opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. All problems found are reported
// together. Validate does not contact the provider.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientId == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if c.RedirectUrl == "" {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter))
	} else if err := validateHttpUrl(c.RedirectUrl); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL: %w", op, err))
	}
	catalog := c.catalog()
	for _, id := range c.Claims {
		if _, ok := catalog.Lookup(id); !ok {
			result = multierror.Append(result, fmt.Errorf("%s: claim %q: %w", op, id, ErrUnknownClaim))
		}
	}
	if c.Timeout < 0 || c.Timeout > MaxTimeout {
		result = multierror.Append(result, fmt.Errorf("%s: timeout %s must be between 0 and %s: %w", op, c.Timeout, MaxTimeout, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// SuccessRedirect returns the configured success URL or DefaultSuccessUrl.
func (c *Config) SuccessRedirect() string {
	if c.SuccessUrl == "" {
		return DefaultSuccessUrl
	}
	return c.SuccessUrl
}

// FailureRedirect returns the configured failure URL or DefaultFailureUrl.
func (c *Config) FailureRedirect() string {
	if c.FailureUrl == "" {
		return DefaultFailureUrl
	}
	return c.FailureUrl
}

// HttpClient is a helper function that creates a new http client for the
// provider configured.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA, c.Timeout)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

func (c *Config) catalog() *ClaimsCatalog {
	if c.ClaimsCatalog == nil {
		return DefaultClaims
	}
	return c.ClaimsCatalog
}

func (c *Config) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

func validateHttpUrl(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is invalid: %w", raw, ErrInvalidParameter)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http or https URL: %w", raw, ErrInvalidParameter)
	}
	return nil
}

// configOptions is the set of available options
type configOptions struct {
	withLabel             string
	withClaims            []string
	withClaimsCatalog     *ClaimsCatalog
	withSuccessUrl        string
	withFailureUrl        string
	withCustomAuthParams  map[string]string
	withCustomTokenParams map[string]string
	withProviderCA        string
	withTimeout           time.Duration
	withLogger            hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withSuccessUrl: DefaultSuccessUrl,
		withFailureUrl: DefaultFailureUrl,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClaims provides an optional list of enabled claim ids.
func WithClaims(claims ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClaims = claims
		}
	}
}

// WithClaimsCatalog provides an optional claims catalog, used to validate
// the enabled claims and derive the requested scopes. It defaults to
// DefaultClaims.
func WithClaimsCatalog(c *ClaimsCatalog) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClaimsCatalog = c
		}
	}
}

// WithLabel provides an optional human readable provider name.
func WithLabel(label string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLabel = label
		}
	}
}

// WithSuccessUrl provides an optional success redirect URL.
func WithSuccessUrl(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSuccessUrl = u
		}
	}
}

// WithFailureUrl provides an optional failure redirect URL.
func WithFailureUrl(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withFailureUrl = u
		}
	}
}

// WithCustomAuthParams provides optional additional authorization request
// parameters.
func WithCustomAuthParams(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCustomAuthParams = params
		}
	}
}

// WithCustomTokenParams provides optional additional token request
// parameters.
func WithCustomTokenParams(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCustomTokenParams = params
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithTimeout provides an optional timeout for requests to the provider.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTimeout = d
		}
	}
}
