// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-connect/oidc"
)

// Response creates a handler for the provider's redirect back to the
// application. The query is handled by the Validator, then the user-agent is
// redirected to the provider's success or failure URL. A request which isn't
// a provider response gets a 404.
//
// The DispositionFunc is optional. Options must match the ones given to
// Login.
//
// Supported options:
//   - oidc.WithTokenKeyPrefix
//   - oidc.WithTokenBytes
func Response(v *oidc.Validator, sFn SessionFunc, dFn DispositionFunc, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.Response"
	switch {
	case v == nil:
		return nil, fmt.Errorf("%s: validator is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: session func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		ts, err := tokenStore(sFn, w, req, opt...)
		if err != nil {
			eFn(fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		d, err := v.Handle(req.Context(), ts, req.URL.Query())
		if err != nil {
			eFn(fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		if d.Outcome == oidc.OutcomeInvalidEntry {
			http.NotFound(w, req)
			return
		}
		if dFn != nil {
			if err := dFn(d, w, req); err != nil {
				eFn(fmt.Errorf("%s: %w", op, err), w, req)
				return
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, req, d.RedirectUrl(v.Flow().Config()), http.StatusFound)
	}, nil
}
