// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gopkg.in/square/go-jose.v2/jwt"

	capjwt "github.com/hashicorp/cap-connect/jwt"
)

const (
	testClientId     = "test-client-id"
	testClientSecret = "test-client-secret"
	testRedirectUrl  = "https://rp.example.com/callback"
	testAuthCode     = "test-auth-code"
)

// testFlow returns a Flow configured for the TestProvider.
func testFlow(t *testing.T, tp *TestProvider, configOpt []Option, flowOpt ...Option) *Flow {
	t.Helper()
	require := require.New(t)
	tp.SetClientCreds(testClientId, testClientSecret)
	tp.SetAllowedRedirectURIs([]string{testRedirectUrl})
	tp.SetExpectedAuthCode(testAuthCode)

	opts := append([]Option{WithProviderCA(tp.CACert())}, configOpt...)
	c, err := NewConfig(testClientId, testClientSecret, testRedirectUrl, opts...)
	require.NoError(err)
	f, err := NewFlow(c, tp.ClientType(), flowOpt...)
	require.NoError(err)
	return f
}

// testAuthorize follows the authorization URL like a user-agent would and
// returns the query of the provider's redirect back to the relying party.
func testAuthorize(t *testing.T, tp *TestProvider, authUrl string) url.Values {
	t.Helper()
	require := require.New(t)
	c, err := (&Config{ProviderCA: tp.CACert()}).HttpClient()
	require.NoError(err)
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := c.Get(authUrl)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	return loc.Query()
}

func TestNewFlow(t *testing.T) {
	t.Parallel()
	validConfig := &Config{ClientId: "c", ClientSecret: "s", RedirectUrl: testRedirectUrl}
	tests := []struct {
		name        string
		config      *Config
		ct          ClientType
		opt         []Option
		wantErrIs   error
		wantKeySet  bool
		wantLabel   string
		wantTimeout time.Duration
	}{
		{name: "google", config: validConfig, ct: NewGoogle(), wantKeySet: true, wantLabel: "google", wantTimeout: MaxTimeout},
		{name: "label", config: &Config{ClientId: "c", ClientSecret: "s", RedirectUrl: testRedirectUrl, Label: "Contoso", Timeout: time.Second}, ct: NewMicrosoft(), wantKeySet: true, wantLabel: "Contoso", wantTimeout: time.Second},
		{
			name:   "generic-without-jwks",
			config: validConfig,
			ct: func() ClientType {
				g, err := NewGeneric("https://op.example.com/a", "https://op.example.com/t", "https://op.example.com/u")
				require.NoError(t, err)
				return g
			}(),
			wantLabel:   "generic",
			wantTimeout: MaxTimeout,
		},
		{name: "with-http-client", config: validConfig, ct: NewGoogle(), opt: []Option{WithHttpClient(&http.Client{Timeout: 2 * time.Second})}, wantKeySet: true, wantLabel: "google", wantTimeout: 2 * time.Second},
		{name: "nil-config", ct: NewGoogle(), wantErrIs: ErrNilParameter},
		{name: "nil-client-type", config: validConfig, wantErrIs: ErrNilParameter},
		{name: "invalid-config", config: &Config{ClientId: "c"}, ct: NewGoogle(), wantErrIs: ErrInvalidParameter},
		{name: "bad-ca", config: &Config{ClientId: "c", ClientSecret: "s", RedirectUrl: testRedirectUrl, ProviderCA: "bad"}, ct: NewGoogle(), wantErrIs: ErrInvalidCACert},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewFlow(tt.config, tt.ct, tt.opt...)
			if tt.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantKeySet, got.keySet != nil)
			assert.Equal(tt.wantLabel, got.Label())
			assert.Equal(tt.wantTimeout, got.client.Timeout)
			assert.Equal(tt.config, got.Config())
			assert.Equal(tt.ct, got.ClientType())
		})
	}
}

func TestFlow_BeginAuthorization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)
	f := testFlow(t, tp, []Option{
		WithClaims("phone_number", "name"),
		WithCustomAuthParams(map[string]string{"prompt": "login", "state": "forged", "scope": "admin"}),
	})

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewTestSession()
		ts, err := NewTokenStore(s)
		require.NoError(err)

		req, err := f.BeginAuthorization(ctx, ts,
			WithAuthParams(map[string]string{"login_hint": "alice@example.com", "nonce": "forged"}),
			WithUILocales(language.MustParse("fr-CA"), language.English),
		)
		require.NoError(err)

		u, err := url.Parse(req.Url())
		require.NoError(err)
		assert.Equal(tp.Addr()+"/auth", u.Scheme+"://"+u.Host+u.Path)

		q := u.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal(testClientId, q.Get("client_id"))
		assert.Equal(testRedirectUrl, q.Get("redirect_uri"))
		assert.Equal("openid email phone profile", q.Get("scope"))
		assert.Equal([]string{"openid", "email", "phone", "profile"}, req.Scopes())
		assert.Equal("login", q.Get("prompt"))
		assert.Equal("alice@example.com", q.Get("login_hint"))
		assert.Equal("fr-CA en", q.Get("ui_locales"))

		assert.Equal(1, s.SaveCount(), "state and nonce are saved together")
		saved := s.Saved()
		assert.Equal(saved[DefaultTokenKeyPrefix+StateTokenName], q.Get("state"))
		assert.Equal(saved[DefaultTokenKeyPrefix+NonceTokenName], q.Get("nonce"))
		assert.Equal(req.State, q.Get("state"))
		assert.Equal(req.Nonce, q.Get("nonce"))
		assert.NotEqual(req.State, req.Nonce)
		for _, k := range []string{"state", "nonce", "scope"} {
			assert.Len(q[k], 1, k)
		}
		assert.Empty(tp.LastAuthRequest(), "no request is made to the provider")
	})
	t.Run("session-fault", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewTestSession()
		s.SaveErr = errors.New("boom")
		ts, err := NewTokenStore(s)
		require.NoError(err)
		_, err = f.BeginAuthorization(ctx, ts)
		require.Error(err)
		assert.ErrorIs(err, ErrSessionUnavailable)
	})
	t.Run("nil-token-store", func(t *testing.T) {
		_, err := f.BeginAuthorization(ctx, nil)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("custom-catalog", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		catalog := NewClaimsCatalog(
			Claim{Id: "name", Scope: ScopeProfile, Title: "Name", Type: ClaimString},
			Claim{Id: "groups", Scope: "groups", Title: "Groups", Type: ClaimJSON},
		)
		custom := testFlow(t, tp, []Option{WithClaimsCatalog(catalog), WithClaims("groups", "name")})
		ts, err := NewTokenStore(NewTestSession())
		require.NoError(err)
		req, err := custom.BeginAuthorization(ctx, ts)
		require.NoError(err)
		assert.Equal([]string{"openid", "email", "groups", "profile"}, req.Scopes())
	})
}

func TestFlow_ExchangeCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		obs := &testObserver{}
		f := testFlow(t, tp, []Option{WithCustomTokenParams(map[string]string{"resource": "api", "client_secret": "forged"})}, WithObserver(obs))

		tokens, err := f.ExchangeCode(ctx, testAuthCode)
		require.NoError(err)
		assert.Equal(AccessToken(tp.AccessToken()), tokens.AccessToken)
		assert.NotEmpty(tokens.RefreshToken)
		assert.NotEmpty(tokens.IdToken)
		assert.Equal("Bearer", tokens.TokenType)
		assert.False(tokens.Expired(time.Now()))

		form := tp.LastTokenRequest()
		assert.Equal("authorization_code", form.Get("grant_type"))
		assert.Equal(testAuthCode, form.Get("code"))
		assert.Equal(testRedirectUrl, form.Get("redirect_uri"))
		assert.Equal(testClientId, form.Get("client_id"))
		assert.Equal(testClientSecret, form.Get("client_secret"))
		assert.Equal("api", form.Get("resource"))
		assert.Equal([]string{EndpointToken}, obs.endpoints())
	})
	t.Run("without-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		tp.OmitIDTokens()
		tokens, err := f.ExchangeCode(ctx, testAuthCode)
		require.NoError(err)
		assert.Empty(tokens.IdToken)
	})
	t.Run("invalid-grant", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		_, err := f.ExchangeCode(ctx, "wrong-code")
		require.Error(err)
		assert.ErrorIs(err, ErrExchangeFailed)
		var te *TokenError
		require.ErrorAs(err, &te)
		assert.Equal("invalid_grant", te.Code)
		assert.Equal(http.StatusBadRequest, te.StatusCode)
	})
	t.Run("provider-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		tp.SetTokenErrorResponse(&TokenError{StatusCode: http.StatusServiceUnavailable, Code: "temporarily_unavailable"})
		_, err := f.ExchangeCode(ctx, testAuthCode)
		require.Error(err)
		assert.ErrorIs(err, ErrExchangeFailed)
		var te *TokenError
		require.ErrorAs(err, &te)
		assert.Equal(http.StatusServiceUnavailable, te.StatusCode)
	})
	t.Run("unreachable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		obs := &testObserver{}
		f := testFlow(t, tp, nil, WithObserver(obs))
		tp.Stop()
		_, err := f.ExchangeCode(ctx, testAuthCode)
		require.Error(err)
		assert.ErrorIs(err, ErrExchangeFailed)
		assert.Equal(1, obs.requestErrors())
	})
	t.Run("empty-code", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		_, err := f.ExchangeCode(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("truncated-response", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":`))
		}))
		t.Cleanup(srv.Close)
		g, err := NewGeneric(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/userinfo")
		require.NoError(err)
		c, err := NewConfig(testClientId, testClientSecret, testRedirectUrl)
		require.NoError(err)
		f, err := NewFlow(c, g)
		require.NoError(err)

		_, err = f.ExchangeCode(ctx, testAuthCode)
		require.Error(err)
		assert.ErrorIs(err, ErrExchangeFailed)
		assert.Contains(err.Error(), "code exchange failed: unexpected end of JSON input")
		var te *TokenError
		assert.False(errors.As(err, &te))
	})
}

func TestFlow_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetUserInfoReply(map[string]interface{}{"sub": "alice", "email": "alice@example.com", "email_verified": true})
		f := testFlow(t, tp, nil)
		info, err := f.UserInfo(ctx, AccessToken(tp.AccessToken()))
		require.NoError(err)
		assert.Equal("alice", info.Subject())
		assert.Equal("alice@example.com", info.Email())
		assert.Equal(true, info["email_verified"])
	})
	t.Run("wrong-token", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		_, err := f.UserInfo(ctx, "not-the-token")
		assert.ErrorIs(t, err, ErrUserInfoFailed)
	})
	t.Run("disabled", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		tp.DisableUserInfo()
		_, err := f.UserInfo(ctx, AccessToken(tp.AccessToken()))
		assert.ErrorIs(t, err, ErrUserInfoFailed)
	})
	t.Run("not-json", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		tp.SetUserInfoReply(nil)
		_, err := f.UserInfo(ctx, AccessToken(tp.AccessToken()))
		assert.ErrorIs(t, err, ErrUserInfoFailed)
	})
	t.Run("empty-token", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := testFlow(t, tp, nil)
		_, err := f.UserInfo(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestFlow_VerifyIdToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)
	_, tpPriv := tp.SigningKeys()
	_, otherPriv := TestGenerateKeys(t)

	withKeySet := testFlow(t, tp, nil)
	pub, _ := tp.SigningKeys()
	staticKeys, err := capjwt.NewStaticKeySet([]string{pub})
	require.NoError(t, err)
	withStaticKeys := testFlow(t, tp, nil, WithKeySet(staticKeys))
	unverified := func() *Flow {
		g, err := NewGeneric(tp.Addr()+"/auth", tp.Addr()+"/token", tp.Addr()+"/userinfo")
		require.NoError(t, err)
		f, err := NewFlow(withKeySet.Config(), g)
		require.NoError(t, err)
		return f
	}()

	claims := func(aud string, exp time.Duration) jwt.Claims {
		return jwt.Claims{
			Subject:  "alice",
			Issuer:   tp.Addr(),
			Audience: jwt.Audience{aud},
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Expiry:   jwt.NewNumericDate(time.Now().Add(exp)),
		}
	}
	withIssuer := func(c jwt.Claims, iss string) jwt.Claims {
		c.Issuer = iss
		return c
	}
	const useStored = "use-stored-nonce"

	tests := []struct {
		name      string
		flow      *Flow
		key       string
		claims    jwt.Claims
		nonce     string
		noStored  bool
		raw       IdToken
		wantErrIs error
	}{
		{name: "valid-jwks", flow: withKeySet, key: tpPriv, claims: claims(testClientId, time.Minute), nonce: useStored},
		{name: "valid-static", flow: withStaticKeys, key: tpPriv, claims: claims(testClientId, time.Minute), nonce: useStored},
		{name: "valid-unverified", flow: unverified, key: otherPriv, claims: claims(testClientId, time.Minute), nonce: useStored},
		{name: "wrong-nonce", flow: withKeySet, key: tpPriv, claims: claims(testClientId, time.Minute), nonce: "replayed", wantErrIs: ErrInvalidNonce},
		{name: "missing-nonce", flow: withKeySet, key: tpPriv, claims: claims(testClientId, time.Minute), wantErrIs: ErrInvalidNonce},
		{name: "no-stored-nonce", flow: withKeySet, key: tpPriv, claims: claims(testClientId, time.Minute), nonce: useStored, noStored: true, wantErrIs: ErrInvalidNonce},
		{name: "wrong-audience", flow: withKeySet, key: tpPriv, claims: claims("someone-else", time.Minute), nonce: useStored, wantErrIs: ErrInvalidAudience},
		{name: "wrong-issuer", flow: withKeySet, key: tpPriv, claims: withIssuer(claims(testClientId, time.Minute), "https://other.example.com"), nonce: useStored, wantErrIs: ErrInvalidIssuer},
		{name: "missing-issuer", flow: withKeySet, key: tpPriv, claims: withIssuer(claims(testClientId, time.Minute), ""), nonce: useStored, wantErrIs: ErrInvalidIssuer},
		{name: "issuer-trailing-slash", flow: withKeySet, key: tpPriv, claims: withIssuer(claims(testClientId, time.Minute), tp.Addr()+"/"), nonce: useStored},
		{name: "unchecked-issuer", flow: unverified, key: otherPriv, claims: withIssuer(claims(testClientId, time.Minute), "https://other.example.com"), nonce: useStored},
		{name: "expired", flow: withKeySet, key: tpPriv, claims: claims(testClientId, -time.Hour), nonce: useStored, wantErrIs: ErrExpiredToken},
		{name: "bad-signature-jwks", flow: withKeySet, key: otherPriv, claims: claims(testClientId, time.Minute), nonce: useStored, wantErrIs: ErrIdTokenVerificationFailed},
		{name: "bad-signature-static", flow: withStaticKeys, key: otherPriv, claims: claims(testClientId, time.Minute), nonce: useStored, wantErrIs: ErrIdTokenVerificationFailed},
		{name: "malformed-unverified", flow: unverified, raw: "not-a-jwt", wantErrIs: ErrMalformedIdToken},
		{name: "missing", flow: withKeySet, raw: "", wantErrIs: ErrMissingIdToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			s := NewTestSession()
			ts, err := NewTokenStore(s)
			require.NoError(err)
			stored := ""
			if !tt.noStored {
				stored, err = ts.CreateToken(ctx, NonceTokenName)
				require.NoError(err)
			}

			raw := tt.raw
			if tt.key != "" {
				nonce := tt.nonce
				if nonce == useStored {
					nonce = stored
					if tt.noStored {
						nonce = "anything"
					}
				}
				private := map[string]interface{}{}
				if nonce != "" {
					private["nonce"] = nonce
				}
				raw = IdToken(TestSignJWT(t, tt.key, tt.claims, private))
			}

			got, err := tt.flow.VerifyIdToken(ctx, ts, raw)

			_, nonceLeft := s.Saved()[DefaultTokenKeyPrefix+NonceTokenName]
			assert.False(nonceLeft, "nonce token must be consumed")
			if tt.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			require.NoError(err)
			assert.Equal("alice", got["sub"])
		})
	}

	t.Run("session-fault", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewTestSession()
		ts, err := NewTokenStore(s)
		require.NoError(err)
		nonce, err := ts.CreateToken(ctx, NonceTokenName)
		require.NoError(err)
		s.GetErr = errors.New("boom")
		raw := IdToken(TestSignJWT(t, tpPriv, claims(testClientId, time.Minute), map[string]interface{}{"nonce": nonce}))
		_, err = withKeySet.VerifyIdToken(ctx, ts, raw)
		require.Error(err)
		assert.ErrorIs(err, ErrSessionUnavailable)
	})
}

func TestFlow_roundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	f := testFlow(t, tp, []Option{WithClaims("name", "email")})
	ts, err := NewTokenStore(NewTestSession())
	require.NoError(err)

	req, err := f.BeginAuthorization(ctx, ts)
	require.NoError(err)
	resp := testAuthorize(t, tp, req.Url())
	assert.Equal(req.State, resp.Get("state"))
	assert.True(strings.HasPrefix(tp.LastAuthRequest().Get("scope"), "openid email"))

	tokens, err := f.ExchangeCode(ctx, resp.Get("code"))
	require.NoError(err)
	idClaims, err := f.VerifyIdToken(ctx, ts, tokens.IdToken)
	require.NoError(err)
	assert.Equal(req.Nonce, idClaims["nonce"])
	info, err := f.UserInfo(ctx, tokens.AccessToken)
	require.NoError(err)
	assert.Equal("alice@example.com", info.Email())
}
