// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// cap-connect signs users in to a web application with an OIDC provider
// using the authorization code flow.
//
// The oidc package implements the flow, oidc/callback provides the http
// handlers, session stores the flow's tokens in gorilla sessions (cookie or
// redis backed) and metrics records outcomes with prometheus.
// cmd/oidc-login is a runnable host which wires them together.
package connect
