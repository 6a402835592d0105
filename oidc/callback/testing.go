// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-connect/oidc"
)

const (
	testClientId     = "test-client-id"
	testClientSecret = "test-client-secret"
	testRedirectUrl  = "https://rp.example.com/callback/test"
	testAuthCode     = "test-auth-code"
)

// testFailFn is a test ErrorResponseFunc
func testFailFn(e error, w http.ResponseWriter, _ *http.Request) {
	if errors.Is(e, oidc.ErrSessionUnavailable) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(e.Error()))
}

// testSessionFn returns a SessionFunc which always returns s.
func testSessionFn(s oidc.Session) SessionFunc {
	return func(http.ResponseWriter, *http.Request) (oidc.Session, error) {
		return s, nil
	}
}

// testNewFlow creates a new Flow for the TestProvider (tp).  This is helpful
// internally, but intentionally not exported.
func testNewFlow(t *testing.T, tp *oidc.TestProvider, opt ...oidc.Option) *oidc.Flow {
	t.Helper()
	require := require.New(t)
	tp.SetClientCreds(testClientId, testClientSecret)
	tp.SetAllowedRedirectURIs([]string{testRedirectUrl})
	tp.SetExpectedAuthCode(testAuthCode)

	opts := append([]oidc.Option{oidc.WithProviderCA(tp.CACert()), oidc.WithLabel("Test")}, opt...)
	c, err := oidc.NewConfig(testClientId, testClientSecret, testRedirectUrl, opts...)
	require.NoError(err)
	f, err := oidc.NewFlow(c, tp.ClientType())
	require.NoError(err)
	return f
}

// testProviderRedirect sends the user-agent to authUrl and returns the URL
// the provider redirected it back to.
func testProviderRedirect(t *testing.T, tp *oidc.TestProvider, authUrl string) string {
	t.Helper()
	require := require.New(t)
	c, err := (&oidc.Config{ProviderCA: tp.CACert()}).HttpClient()
	require.NoError(err)
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := c.Get(authUrl)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}
