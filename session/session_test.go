// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-connect/oidc"
)

// testRoundTrip returns a request carrying the cookies set on w.
func testRoundTrip(w *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestNew(t *testing.T) {
	t.Parallel()
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	tests := []struct {
		name      string
		store     sessions.Store
		w         http.ResponseWriter
		req       *http.Request
		wantIsErr error
	}{
		{name: "valid", store: store, w: w, req: req},
		{name: "nil-store", w: w, req: req, wantIsErr: ErrInvalidParameter},
		{name: "nil-writer", store: store, req: req, wantIsErr: ErrInvalidParameter},
		{name: "nil-request", store: store, w: w, wantIsErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := New(tt.store, tt.w, tt.req)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.True(got.IsNew())
		})
	}
}

func TestSession_cookieStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32))

	w := httptest.NewRecorder()
	s, err := New(store, w, httptest.NewRequest(http.MethodGet, "/", nil), WithName("test"))
	require.NoError(err)
	_, found, err := s.Get(ctx, "state")
	require.NoError(err)
	assert.False(found)

	require.NoError(s.Set(ctx, "state", "s1"))
	require.NoError(s.Set(ctx, "nonce", "n1"))
	require.NoError(s.Save(ctx))
	require.Len(w.Result().Cookies(), 1)
	assert.Equal("test", w.Result().Cookies()[0].Name)

	w2 := httptest.NewRecorder()
	s, err = New(store, w2, testRoundTrip(w), WithName("test"))
	require.NoError(err)
	assert.False(s.IsNew())
	got, found, err := s.Get(ctx, "state")
	require.NoError(err)
	assert.True(found)
	assert.Equal("s1", got)

	require.NoError(s.Delete(ctx, "state"))
	require.NoError(s.Save(ctx))
	s, err = New(store, httptest.NewRecorder(), testRoundTrip(w2), WithName("test"))
	require.NoError(err)
	_, found, err = s.Get(ctx, "state")
	require.NoError(err)
	assert.False(found)
	got, _, err = s.Get(ctx, "nonce")
	require.NoError(err)
	assert.Equal("n1", got)
}

func TestSession_tamperedCookie(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultName, Value: "forged"})

	s, err := New(store, httptest.NewRecorder(), req)
	require.NoError(err)
	assert.True(s.IsNew())
}

func TestSession_invalidValue(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32))
	s, err := New(store, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	s.s.Values["state"] = 42
	_, _, err = s.Get(context.Background(), "state")
	assert.ErrorIs(err, ErrInvalidValue)
}

func TestFunc_tokenStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	sFn := Func(sessions.NewCookieStore(securecookie.GenerateRandomKey(32)))

	w := httptest.NewRecorder()
	s, err := sFn(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(err)
	ts, err := oidc.NewTokenStore(s)
	require.NoError(err)
	state, err := ts.CreateToken(ctx, oidc.StateTokenName)
	require.NoError(err)

	s, err = sFn(httptest.NewRecorder(), testRoundTrip(w))
	require.NoError(err)
	ts, err = oidc.NewTokenStore(s)
	require.NoError(err)
	ok, err := ts.Confirm(ctx, oidc.StateTokenName, state)
	require.NoError(err)
	assert.True(ok)
}

func TestFunc_beginAuthorization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	sFn := Func(sessions.NewCookieStore(securecookie.GenerateRandomKey(32)))

	c, err := oidc.NewConfig("client", "secret", "https://rp.example.com/callback")
	require.NoError(err)
	g, err := oidc.NewGeneric("https://op.example.com/auth", "https://op.example.com/token", "https://op.example.com/userinfo")
	require.NoError(err)
	f, err := oidc.NewFlow(c, g)
	require.NoError(err)

	w := httptest.NewRecorder()
	s, err := sFn(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(err)
	ts, err := oidc.NewTokenStore(s)
	require.NoError(err)
	_, err = f.BeginAuthorization(ctx, ts)
	require.NoError(err)
	assert.Len(w.Result().Header.Values("Set-Cookie"), 1, "state and nonce share one cookie write")
}
