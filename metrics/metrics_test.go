// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-connect/oidc"
)

func TestNewRecorder(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	_, err := NewRecorder(nil)
	assert.ErrorIs(err, ErrNilRegisterer)

	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(err)
	require.NotNil(r)

	_, err = NewRecorder(reg)
	require.Error(err, "collectors can only be registered once")
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(err, &are)
}

func TestRecorder_ObserveOutcome(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(err)

	r.ObserveOutcome(oidc.TypeGoogle, oidc.OutcomeAuthenticated)
	r.ObserveOutcome(oidc.TypeGoogle, oidc.OutcomeAuthenticated)
	r.ObserveOutcome(oidc.TypeMicrosoft, oidc.OutcomeCancelled)

	assert.Equal(2.0, testutil.ToFloat64(r.outcomes.WithLabelValues(oidc.TypeGoogle, "authenticated")))
	assert.Equal(1.0, testutil.ToFloat64(r.outcomes.WithLabelValues(oidc.TypeMicrosoft, "cancelled")))
	assert.Equal(2, testutil.CollectAndCount(r.outcomes))

	want := `
# HELP oidc_connect_authentication_outcomes_total Count of handled provider responses by outcome.
# TYPE oidc_connect_authentication_outcomes_total counter
oidc_connect_authentication_outcomes_total{client_type="google",outcome="authenticated"} 2
oidc_connect_authentication_outcomes_total{client_type="microsoft",outcome="cancelled"} 1
`
	assert.NoError(testutil.CollectAndCompare(r.outcomes, strings.NewReader(want)))
}

func TestRecorder_ObserveProviderRequest(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(err)

	r.ObserveProviderRequest(oidc.TypeGeneric, oidc.EndpointToken, 100*time.Millisecond, nil)
	r.ObserveProviderRequest(oidc.TypeGeneric, oidc.EndpointUserInfo, time.Second, errors.New("boom"))

	assert.Equal(2, testutil.CollectAndCount(r.providerRequests))
}

func TestRecorder_InstrumentHandler(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(err)

	h := r.InstrumentHandler("login", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "https://op.example.com/auth", http.StatusFound)
	}))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login/google", nil))
		assert.Equal(http.StatusFound, w.Code)
	}
	nf := r.InstrumentHandler("callback", http.NotFoundHandler())
	nf(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback/google", nil))

	assert.Equal(3.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("login", "302", http.MethodGet)))
	assert.Equal(1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("callback", "404", http.MethodGet)))
}

func TestRecorder_flowObserver(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(err)

	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds("client", "secret")
	tp.SetAllowedRedirectURIs([]string{"https://rp.example.com/callback"})
	c, err := oidc.NewConfig("client", "secret", "https://rp.example.com/callback", oidc.WithProviderCA(tp.CACert()))
	require.NoError(err)
	f, err := oidc.NewFlow(c, tp.ClientType(), oidc.WithObserver(r))
	require.NoError(err)

	_, err = f.ExchangeCode(context.Background(), "unexpected")
	require.Error(err)
	assert.Equal(1, testutil.CollectAndCount(r.providerRequests))
}
