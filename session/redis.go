// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/hashicorp/cap-connect/sdk/id"
)

const (
	// DefaultTTL is the default lifetime of a RedisStore session.
	DefaultTTL = time.Hour

	// DefaultKeyPrefix is the default prefix of RedisStore keys.
	DefaultKeyPrefix = "oidc_connect:session:"
)

// RedisStore is a sessions.Store which keeps session values in redis. Only
// the signed session id is sent to the user-agent.
type RedisStore struct {
	client    redis.UniversalClient
	codecs    []securecookie.Codec
	options   *sessions.Options
	keyPrefix string
	ttl       time.Duration
	logger    hclog.Logger
}

var _ sessions.Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. WithKeyPairs is required.
//
// Supported options:
//   - WithKeyPairs
//   - WithKeyPrefix
//   - WithTTL
//   - WithCookieOptions
//   - WithLogger
func NewRedisStore(client redis.UniversalClient, opt ...Option) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrInvalidParameter)
	}
	opts := getRedisStoreOpts(opt...)
	if len(opts.withKeyPairs) == 0 || len(opts.withKeyPairs[0]) == 0 {
		return nil, fmt.Errorf("%s: missing hash key: %w", op, ErrInvalidParameter)
	}
	codecs := securecookie.CodecsFromPairs(opts.withKeyPairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(opts.withTTL.Seconds()))
		}
	}
	return &RedisStore{
		client:    client,
		codecs:    codecs,
		options:   opts.withCookieOptions,
		keyPrefix: opts.withKeyPrefix,
		ttl:       opts.withTTL,
		logger:    opts.withLogger,
	}, nil
}

// Get returns the named session for the request, cached in the request's
// registry after the first call.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the named session for the request's cookie, or a new session
// when there is no cookie or the session has expired. Like the gorilla
// stores, a session is always returned along with any error.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.codecs...); err != nil {
		s.logger.Debug("discarding undecodable session cookie", "error", err)
		return session, err
	}
	found, err := s.load(r.Context(), session)
	if err != nil {
		return session, err
	}
	if !found {
		s.logger.Trace("session expired", "id", session.ID)
		session.ID = ""
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A session with a negative
// MaxAge is deleted.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	const op = "session.(RedisStore).Save"
	ctx := r.Context()
	if session.Options != nil && session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.client.Del(ctx, s.key(session.ID)).Err(); err != nil {
				return fmt.Errorf("%s: unable to delete session: %w", op, err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		sid, err := id.NewToken(id.MinTokenBytes * 2)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		session.ID = sid
	}
	if err := s.store(ctx, session); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("%s: unable to encode cookie: %w", op, err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func (s *RedisStore) key(sid string) string {
	return s.keyPrefix + sid
}

func (s *RedisStore) load(ctx context.Context, session *sessions.Session) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(session.ID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("unable to load session: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return false, fmt.Errorf("unable to decode session: %w", err)
	}
	for k, v := range values {
		session.Values[k] = v
	}
	return true, nil
}

func (s *RedisStore) store(ctx context.Context, session *sessions.Session) error {
	values := make(map[string]string, len(session.Values))
	for k, v := range session.Values {
		ks, ok := k.(string)
		if !ok {
			return fmt.Errorf("key %v is a %T: %w", k, k, ErrInvalidValue)
		}
		vs, ok := v.(string)
		if !ok {
			return fmt.Errorf("%q holds a %T: %w", ks, v, ErrInvalidValue)
		}
		values[ks] = vs
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("unable to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("unable to save session: %w", err)
	}
	return nil
}
