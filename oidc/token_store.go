// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/hashicorp/cap-connect/sdk/id"
)

// Session is the per user-agent key/value storage that connects the two
// halves of the flow. Values written with Set must be visible to a later
// request from the same user-agent once Save returns.
//
// Get returns found == false when there is no value; a non-nil error is
// reserved for storage faults.
type Session interface {
	Get(ctx context.Context, name string) (value string, found bool, err error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
	Save(ctx context.Context) error
}

const (
	// StateTokenName is the name of the token sent as the "state" parameter.
	StateTokenName = "state"

	// NonceTokenName is the name of the token sent as the "nonce" parameter.
	NonceTokenName = "nonce"

	// DefaultTokenKeyPrefix namespaces the tokens within the session.
	DefaultTokenKeyPrefix = "oidc_connect."

	// DefaultTokenBytes is the number of random bytes in a token.
	DefaultTokenBytes = 32
)

// TokenStore creates and confirms single use anti-forgery tokens kept in a
// Session. A token can be confirmed at most once: it's removed by the first
// confirmation attempt, whatever the outcome.
//
// A TokenStore belongs to a single request and isn't safe for concurrent use.
type TokenStore struct {
	session Session
	prefix  string
	nBytes  int
	dirty   bool
}

// NewTokenStore creates a TokenStore for the session.
//
// Supported options:
//   - WithTokenKeyPrefix
//   - WithTokenBytes
func NewTokenStore(s Session, opt ...Option) (*TokenStore, error) {
	const op = "NewTokenStore"
	if s == nil {
		return nil, fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	opts := getTokenStoreOpts(opt...)
	if opts.withTokenBytes < id.MinTokenBytes {
		return nil, fmt.Errorf("%s: token bytes %d is less than %d: %w", op, opts.withTokenBytes, id.MinTokenBytes, ErrInvalidParameter)
	}
	return &TokenStore{
		session: s,
		prefix:  opts.withTokenKeyPrefix,
		nBytes:  opts.withTokenBytes,
	}, nil
}

// CreateToken generates a new random token, stores it under the name
// (replacing any previous one) and saves the session before returning, so
// the token is available to the request which completes the flow.
func (ts *TokenStore) CreateToken(ctx context.Context, name string) (string, error) {
	const op = "TokenStore.CreateToken"
	tk, err := ts.create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ts.save(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return tk, nil
}

// Confirm reports whether the candidate equals the stored token. The stored
// token is deleted, and the session saved, before returning regardless of
// the result. When there is no stored token, or the candidate is empty,
// Confirm returns false without comparing. Only session faults are returned
// as errors.
func (ts *TokenStore) Confirm(ctx context.Context, name, candidate string) (bool, error) {
	const op = "TokenStore.Confirm"
	ok, err := ts.confirm(ctx, name, candidate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := ts.save(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// DestroyToken removes the token without confirming it and saves the
// session.
func (ts *TokenStore) DestroyToken(ctx context.Context, name string) error {
	const op = "TokenStore.DestroyToken"
	if err := ts.remove(ctx, name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ts.save(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// create, confirm and remove change the session without saving it, so one
// operation touching several tokens saves once.
func (ts *TokenStore) create(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("token name is empty: %w", ErrInvalidParameter)
	}
	tk, err := id.NewToken(ts.nBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenGeneratorFailed, err)
	}
	if err := ts.session.Set(ctx, ts.key(name), tk); err != nil {
		return "", fmt.Errorf("unable to set token: %w: %w", ErrSessionUnavailable, err)
	}
	ts.dirty = true
	return tk, nil
}

func (ts *TokenStore) confirm(ctx context.Context, name, candidate string) (bool, error) {
	stored, found, err := ts.session.Get(ctx, ts.key(name))
	if err != nil {
		return false, fmt.Errorf("unable to get token: %w: %w", ErrSessionUnavailable, err)
	}
	if err := ts.remove(ctx, name); err != nil {
		return false, err
	}
	if !found || stored == "" || candidate == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

func (ts *TokenStore) remove(ctx context.Context, name string) error {
	if err := ts.session.Delete(ctx, ts.key(name)); err != nil {
		return fmt.Errorf("unable to delete token: %w: %w", ErrSessionUnavailable, err)
	}
	ts.dirty = true
	return nil
}

// save saves the session when a token changed since the last save.
func (ts *TokenStore) save(ctx context.Context) error {
	if !ts.dirty {
		return nil
	}
	if err := ts.session.Save(ctx); err != nil {
		return fmt.Errorf("unable to save session: %w: %w", ErrSessionUnavailable, err)
	}
	ts.dirty = false
	return nil
}

func (ts *TokenStore) key(name string) string {
	return ts.prefix + name
}

// tokenStoreOptions is the set of available options for TokenStore
type tokenStoreOptions struct {
	withTokenKeyPrefix string
	withTokenBytes     int
}

func tokenStoreDefaults() tokenStoreOptions {
	return tokenStoreOptions{
		withTokenKeyPrefix: DefaultTokenKeyPrefix,
		withTokenBytes:     DefaultTokenBytes,
	}
}

func getTokenStoreOpts(opt ...Option) tokenStoreOptions {
	opts := tokenStoreDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTokenKeyPrefix provides an optional session key prefix for tokens.
func WithTokenKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*tokenStoreOptions); ok {
			o.withTokenKeyPrefix = prefix
		}
	}
}

// WithTokenBytes provides an optional number of random bytes per token.
func WithTokenBytes(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*tokenStoreOptions); ok {
			o.withTokenBytes = n
		}
	}
}
