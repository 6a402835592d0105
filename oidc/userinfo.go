// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

// UserInfo is the set of claims returned by a provider's userinfo endpoint.
// It's passed to the host exactly as received.
type UserInfo map[string]interface{}

// Subject returns the "sub" claim.
func (u UserInfo) Subject() string { return u.StringClaim("sub") }

// Email returns the "email" claim.
func (u UserInfo) Email() string { return u.StringClaim("email") }

// StringClaim returns the named claim when it's a string, otherwise "".
func (u UserInfo) StringClaim(name string) string {
	s, _ := u[name].(string)
	return s
}
