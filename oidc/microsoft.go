// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/url"
)

const (
	// DefaultMicrosoftTenant accepts both work/school and personal accounts.
	DefaultMicrosoftTenant = "common"

	microsoftBaseUrl = "https://login.microsoftonline.com"
)

// Microsoft is the ClientType for Microsoft identity platform accounts. The
// tenant id is part of every endpoint.
type Microsoft struct {
	tenant string
	issuer string
}

var (
	_ ClientType     = (*Microsoft)(nil)
	_ KeySetProvider = (*Microsoft)(nil)
)

// NewMicrosoft creates a Microsoft client type for the DefaultMicrosoftTenant
// unless WithTenant is given. The id_token issuer embeds the tenant's GUID,
// so "iss" is only checked when WithIssuer is given.
//
// Supported options:
//   - WithTenant
//   - WithIssuer
func NewMicrosoft(opt ...Option) *Microsoft {
	opts := getClientTypeOpts(opt...)
	return &Microsoft{tenant: opts.withTenant, issuer: opts.withIssuer}
}

// Tenant returns the tenant id used in the endpoints.
func (m *Microsoft) Tenant() string { return m.tenant }

func (m *Microsoft) Type() string             { return TypeMicrosoft }
func (m *Microsoft) AuthorizationUrl() string { return m.endpoint("oauth2/authorize") }
func (m *Microsoft) TokenUrl() string         { return m.endpoint("oauth2/token") }
func (m *Microsoft) UserInfoUrl() string      { return m.endpoint("openid/userinfo") }
func (m *Microsoft) KeySetUrl() string        { return m.endpoint("discovery/keys") }
func (m *Microsoft) Issuer() string           { return m.issuer }

// AuthParams returns no additional parameters.
func (m *Microsoft) AuthParams() map[string]string { return map[string]string{} }

func (m *Microsoft) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", microsoftBaseUrl, url.PathEscape(m.tenant), path)
}
