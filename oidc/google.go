// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

const (
	GoogleAuthorizationUrl = "https://accounts.google.com/o/oauth2/auth"
	GoogleTokenUrl         = "https://accounts.google.com/o/oauth2/token"
	GoogleUserInfoUrl      = "https://www.googleapis.com/plus/v1/people/me/openIdConnect"
	GoogleKeySetUrl        = "https://www.googleapis.com/oauth2/v3/certs"
	GoogleIssuer           = "https://accounts.google.com"
)

// Google is the ClientType for Google accounts. Its endpoints are fixed.
type Google struct{}

var (
	_ ClientType     = (*Google)(nil)
	_ KeySetProvider = (*Google)(nil)
)

// NewGoogle creates a Google client type.
func NewGoogle() *Google { return &Google{} }

func (*Google) Type() string                  { return TypeGoogle }
func (*Google) AuthorizationUrl() string      { return GoogleAuthorizationUrl }
func (*Google) TokenUrl() string              { return GoogleTokenUrl }
func (*Google) UserInfoUrl() string           { return GoogleUserInfoUrl }
func (*Google) KeySetUrl() string             { return GoogleKeySetUrl }
func (*Google) Issuer() string                { return GoogleIssuer }
func (*Google) AuthParams() map[string]string { return map[string]string{} }
