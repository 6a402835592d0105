// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for signing users in with an OIDC provider using the
authorization code flow.

Primary types provided by the package

* Config: the relying party's registration with a provider (client id and
secret, redirect URL, requested claims, success and failure URLs, custom
parameters).

* ClientType: the provider's endpoints. Google, Microsoft and Generic are
built in; NewClientType creates one by name for configuration driven hosts.

* Flow: the protocol steps of the authorization code flow. It builds the
authorization request, exchanges the code for tokens, verifies the id_token
and fetches the user's claims from the userinfo endpoint.

* TokenStore: single use state and nonce tokens kept in a user-agent's
Session.

* Validator: turns the provider's response into a Disposition: one of
InvalidEntry, ForgeryRejected, Cancelled, ProviderError or Authenticated.

The oidc/callback package

The callback package wraps a Flow and a Validator into the two
http.HandlerFuncs a host mounts: one which starts the flow and one which
receives the provider's response.
*/
package oidc
