// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/cap-connect/oidc"
)

// SessionFunc returns the user's session for the request. It's called once
// per request by the handlers. The ResponseWriter is provided for sessions
// which are persisted with cookies.
type SessionFunc func(w http.ResponseWriter, req *http.Request) (oidc.Session, error)

// DispositionFunc is used by Response to act on the outcome of a provider
// response before the user-agent is redirected, for example to sign the user
// into the host application or to flash d.Message().
//
// The function must not write a body or call WriteHeader. If it returns an
// error, the ErrorResponseFunc is called instead of redirecting.
type DispositionFunc func(d *oidc.Disposition, w http.ResponseWriter, req *http.Request) error

// ErrorResponseFunc is used by the handlers to create a http response when a
// request can't be handled, which happens for session faults, token sink
// faults and DispositionFunc errors. Failed authentication attempts are never
// reported through it.
type ErrorResponseFunc func(err error, w http.ResponseWriter, req *http.Request)
