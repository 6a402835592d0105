// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package connect_test

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hashicorp/cap-connect/metrics"
	"github.com/hashicorp/cap-connect/oidc"
	"github.com/hashicorp/cap-connect/oidc/callback"
	"github.com/hashicorp/cap-connect/session"
)

func Example_oidc() {
	// Record outcomes and provider latencies with prometheus
	rec, err := metrics.NewRecorder(prometheus.NewRegistry())
	if err != nil {
		// handle error
	}

	// Create a Config and a Flow for a Microsoft tenant
	c, err := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"https://your_redirect_url/callback/microsoft",
		oidc.WithClaims("name", "email"),
		oidc.WithSuccessUrl("/welcome"),
	)
	if err != nil {
		// handle error
	}
	f, err := oidc.NewFlow(c, oidc.NewMicrosoft(oidc.WithTenant("contoso.onmicrosoft.com")), oidc.WithObserver(rec))
	if err != nil {
		// handle error
	}
	v, err := oidc.NewValidator(f, oidc.WithObserver(rec))
	if err != nil {
		// handle error
	}

	// Keep the flow's tokens in redis, with only a signed session id in the
	// user-agent's cookie
	store, err := session.NewRedisStore(
		redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
		session.WithKeyPairs(securecookie.GenerateRandomKey(64)),
	)
	if err != nil {
		// handle error
	}
	sessionFn := session.Func(store)

	errorFn := func(err error, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}

	login, err := callback.Login(f, sessionFn, errorFn)
	if err != nil {
		// handle error
	}
	http.HandleFunc("/login/microsoft", login)

	// Sign the user in by keeping their claims in the session
	dispositionFn := func(d *oidc.Disposition, w http.ResponseWriter, req *http.Request) error {
		if d.Outcome != oidc.OutcomeAuthenticated {
			return nil
		}
		s, err := session.New(store, w, req)
		if err != nil {
			return err
		}
		user, err := json.Marshal(d.UserInfo)
		if err != nil {
			return err
		}
		if err := s.Set(req.Context(), "user", string(user)); err != nil {
			return err
		}
		return s.Save(req.Context())
	}
	response, err := callback.Response(v, sessionFn, dispositionFn, errorFn)
	if err != nil {
		// handle error
	}
	http.HandleFunc("/callback/microsoft", rec.InstrumentHandler("callback", response))
}
