// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
session is a package that adapts github.com/gorilla/sessions to the
oidc.Session interface, so the state and nonce tokens of an authentication
attempt can be kept in any sessions.Store.

Two stores are commonly used: a sessions.CookieStore, which keeps the tokens
in an authenticated and encrypted cookie, and the RedisStore in this package,
which keeps them server side with a TTL and only sends a signed session id to
the user-agent.
*/
package session
