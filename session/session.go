// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/hashicorp/cap-connect/oidc"
)

// DefaultName is the default session (and cookie) name.
const DefaultName = "oidc_connect"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidValue     = errors.New("invalid session value")
)

// Session is an oidc.Session backed by a gorilla/sessions session. It's bound
// to the request and ResponseWriter it was loaded for, so Save can write the
// session cookie.
type Session struct {
	s   *sessions.Session
	w   http.ResponseWriter
	req *http.Request
}

var _ oidc.Session = (*Session)(nil)

// New loads the named session for the request from the store. A cookie
// which can't be decoded (tampered, expired or signed with a rotated key)
// starts a new session.
//
// Supported options:
//   - WithName
func New(store sessions.Store, w http.ResponseWriter, req *http.Request, opt ...Option) (*Session, error) {
	const op = "session.New"
	switch {
	case store == nil:
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrInvalidParameter)
	case w == nil:
		return nil, fmt.Errorf("%s: response writer is nil: %w", op, ErrInvalidParameter)
	case req == nil:
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrInvalidParameter)
	}
	opts := getSessionOpts(opt...)

	s, err := store.Get(req, opts.withName)
	if err != nil {
		var scErr securecookie.Error
		if !errors.As(err, &scErr) || !scErr.IsDecode() {
			return nil, fmt.Errorf("%s: unable to load session: %w", op, err)
		}
	}
	if s == nil {
		return nil, fmt.Errorf("%s: store returned no session", op)
	}
	return &Session{s: s, w: w, req: req}, nil
}

// Func returns a func which loads the request's session from the store. It
// can be used as a callback.SessionFunc.
//
// Supported options:
//   - WithName
func Func(store sessions.Store, opt ...Option) func(http.ResponseWriter, *http.Request) (oidc.Session, error) {
	return func(w http.ResponseWriter, req *http.Request) (oidc.Session, error) {
		return New(store, w, req, opt...)
	}
}

// Get returns the value stored under name.
func (s *Session) Get(_ context.Context, name string) (string, bool, error) {
	v, ok := s.s.Values[name]
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("session.Get: %q holds a %T: %w", name, v, ErrInvalidValue)
	}
	return str, true, nil
}

// Set stores value under name. It's not persisted until Save.
func (s *Session) Set(_ context.Context, name, value string) error {
	s.s.Values[name] = value
	return nil
}

// Delete removes name. It's not persisted until Save.
func (s *Session) Delete(_ context.Context, name string) error {
	delete(s.s.Values, name)
	return nil
}

// Save persists the session with its store.
func (s *Session) Save(_ context.Context) error {
	if err := s.s.Save(s.req, s.w); err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	return nil
}

// IsNew reports whether the session was created for this request.
func (s *Session) IsNew() bool {
	return s.s.IsNew
}
