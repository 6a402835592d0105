// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	"golang.org/x/text/language"

	"github.com/hashicorp/cap-connect/oidc"
)

// Login creates a handler which starts an authentication attempt with the
// flow's provider and redirects the user-agent to it.
//
// The languages of the request's Accept-Language header are sent to the
// provider as ui_locales, unless WithUILocales is given.
//
// Supported options:
//   - oidc.WithAuthParams
//   - oidc.WithUILocales
//   - oidc.WithTokenKeyPrefix
//   - oidc.WithTokenBytes
func Login(f *oidc.Flow, sFn SessionFunc, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.Login"
	switch {
	case f == nil:
		return nil, fmt.Errorf("%s: flow is nil: %w", op, oidc.ErrInvalidParameter)
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

		var beginOpts []oidc.Option
		if tags, _, err := language.ParseAcceptLanguage(req.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
			beginOpts = append(beginOpts, oidc.WithUILocales(tags...))
		}
		beginOpts = append(beginOpts, opt...)

		ar, err := f.BeginAuthorization(req.Context(), ts, beginOpts...)
		if err != nil {
			eFn(fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, req, ar.Url(), http.StatusFound)
	}, nil
}

func tokenStore(sFn SessionFunc, w http.ResponseWriter, req *http.Request, opt ...oidc.Option) (*oidc.TokenStore, error) {
	s, err := sFn(w, req)
	if err != nil {
		return nil, fmt.Errorf("unable to load session: %w: %w", oidc.ErrSessionUnavailable, err)
	}
	return oidc.NewTokenStore(s, opt...)
}
