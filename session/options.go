// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// sessionOptions is the set of available options for New and Func
type sessionOptions struct {
	withName string
}

func sessionDefaults() sessionOptions {
	return sessionOptions{
		withName: DefaultName,
	}
}

func getSessionOpts(opt ...Option) sessionOptions {
	opts := sessionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// redisStoreOptions is the set of available options for RedisStore
type redisStoreOptions struct {
	withKeyPairs      [][]byte
	withKeyPrefix     string
	withTTL           time.Duration
	withCookieOptions *sessions.Options
	withLogger        hclog.Logger
}

func redisStoreDefaults() redisStoreOptions {
	return redisStoreOptions{
		withKeyPrefix: DefaultKeyPrefix,
		withTTL:       DefaultTTL,
		withCookieOptions: &sessions.Options{
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		withLogger: hclog.NewNullLogger(),
	}
}

func getRedisStoreOpts(opt ...Option) redisStoreOptions {
	opts := redisStoreDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithName provides an optional session (and cookie) name.
func WithName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*sessionOptions); ok && name != "" {
			o.withName = name
		}
	}
}

// WithKeyPairs provides the hash and (optional) block key pairs used to sign
// and encrypt the session id cookie. See securecookie.CodecsFromPairs.
func WithKeyPairs(keyPairs ...[]byte) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisStoreOptions); ok {
			o.withKeyPairs = keyPairs
		}
	}
}

// WithKeyPrefix provides an optional prefix for the redis keys of sessions.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisStoreOptions); ok {
			o.withKeyPrefix = prefix
		}
	}
}

// WithTTL provides an optional lifetime for sessions, which is refreshed on
// every save.
func WithTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisStoreOptions); ok && ttl > 0 {
			o.withTTL = ttl
		}
	}
}

// WithCookieOptions provides optional attributes for the session id cookie.
func WithCookieOptions(c *sessions.Options) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisStoreOptions); ok && c != nil {
			o.withCookieOptions = c
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisStoreOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
