// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides handlers (in the form of
http.HandlerFunc) for both halves of an OIDC authorization code flow: Login
redirects the user-agent to the provider and Response handles the provider's
redirect back to the application.

Both handlers get the user's session from a SessionFunc, so the state and
nonce tokens created by Login are found by Response.
*/
package callback
