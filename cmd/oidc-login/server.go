// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sort"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashicorp/cap-connect/metrics"
	"github.com/hashicorp/cap-connect/oidc"
	"github.com/hashicorp/cap-connect/oidc/callback"
)

// Session keys used by the host, next to the flow's tokens.
const (
	userKey  = "user"
	flashKey = "flash"
)

type server struct {
	providers map[string]*provider
	sessionFn callback.SessionFunc
	logger    hclog.Logger

	login    map[string]http.HandlerFunc
	response map[string]http.HandlerFunc
}

// newServer returns the host's handler: the login and callback routes of
// every provider, the user's page, the claims catalog and /metrics.
func newServer(providers map[string]*provider, sFn callback.SessionFunc, rec *metrics.Recorder, reg prometheus.Gatherer, logger hclog.Logger) (http.Handler, error) {
	s := &server{
		providers: providers,
		sessionFn: sFn,
		logger:    logger,
		login:     make(map[string]http.HandlerFunc, len(providers)),
		response:  make(map[string]http.HandlerFunc, len(providers)),
	}
	for name, p := range providers {
		l, err := callback.Login(p.flow, sFn, s.errorResponse)
		if err != nil {
			return nil, err
		}
		r, err := callback.Response(p.validator, sFn, s.disposition, s.errorResponse)
		if err != nil {
			return nil, err
		}
		s.login[name] = l
		s.response[name] = r
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	r.Handle("/login/{provider}", rec.InstrumentHandler("login", http.HandlerFunc(s.handleLogin))).Methods(http.MethodGet)
	r.Handle("/callback/{provider}", rec.InstrumentHandler("callback", http.HandlerFunc(s.handleCallback))).Methods(http.MethodGet)
	r.Handle(oidc.DefaultSuccessUrl, rec.InstrumentHandler("user", http.HandlerFunc(s.handleUser))).Methods(http.MethodGet)
	r.Handle(oidc.DefaultFailureUrl, rec.InstrumentHandler("user_login", http.HandlerFunc(s.handleLoginPage))).Methods(http.MethodGet)
	r.Handle("/claims", rec.InstrumentHandler("claims", http.HandlerFunc(s.handleClaims))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	stdLogger := logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Error})
	var h http.Handler = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLogger))(r)
	h = handlers.CombinedLoggingHandler(logger.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Info}), h)
	return h, nil
}

func (s *server) handleLogin(w http.ResponseWriter, req *http.Request) {
	h, ok := s.login[mux.Vars(req)["provider"]]
	if !ok {
		http.NotFound(w, req)
		return
	}
	h(w, req)
}

func (s *server) handleCallback(w http.ResponseWriter, req *http.Request) {
	h, ok := s.response[mux.Vars(req)["provider"]]
	if !ok {
		http.NotFound(w, req)
		return
	}
	h(w, req)
}

// disposition signs the user in on success and keeps the message for the
// login page otherwise.
func (s *server) disposition(d *oidc.Disposition, w http.ResponseWriter, req *http.Request) error {
	sess, err := s.sessionFn(w, req)
	if err != nil {
		return err
	}
	ctx := req.Context()
	if d.Outcome != oidc.OutcomeAuthenticated {
		if err := sess.Set(ctx, flashKey, d.Message()); err != nil {
			return err
		}
		return sess.Save(ctx)
	}
	raw, err := json.Marshal(d.UserInfo)
	if err != nil {
		return err
	}
	if err := sess.Set(ctx, userKey, string(raw)); err != nil {
		return err
	}
	if err := sess.Delete(ctx, flashKey); err != nil {
		return err
	}
	return sess.Save(ctx)
}

func (s *server) errorResponse(err error, w http.ResponseWriter, _ *http.Request) {
	s.logger.Error("unable to handle request", "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, oidc.ErrSessionUnavailable) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *server) handleUser(w http.ResponseWriter, req *http.Request) {
	sess, err := s.sessionFn(w, req)
	if err != nil {
		s.errorResponse(err, w, req)
		return
	}
	raw, found, err := sess.Get(req.Context(), userKey)
	if err != nil {
		s.errorResponse(err, w, req)
		return
	}
	if !found {
		http.Redirect(w, req, oidc.DefaultFailureUrl, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(raw))
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Log in</title></head>
<body>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<ul>
{{range .Providers}}<li><a href="/login/{{.Name}}">Log in with {{.Label}}</a></li>
{{end}}</ul>
</body>
</html>
`))

type loginLink struct {
	Name  string
	Label string
}

func (s *server) handleLoginPage(w http.ResponseWriter, req *http.Request) {
	sess, err := s.sessionFn(w, req)
	if err != nil {
		s.errorResponse(err, w, req)
		return
	}
	ctx := req.Context()
	msg, found, err := sess.Get(ctx, flashKey)
	if err != nil {
		s.errorResponse(err, w, req)
		return
	}
	if found {
		if err := sess.Delete(ctx, flashKey); err != nil {
			s.errorResponse(err, w, req)
			return
		}
		if err := sess.Save(ctx); err != nil {
			s.errorResponse(err, w, req)
			return
		}
	}

	links := make([]loginLink, 0, len(s.providers))
	for name, p := range s.providers {
		links = append(links, loginLink{Name: name, Label: p.flow.Label()})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginPage.Execute(w, struct {
		Message   string
		Providers []loginLink
	}{msg, links}); err != nil {
		s.logger.Error("unable to render login page", "error", err)
	}
}

func (s *server) handleClaims(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(oidc.DefaultClaims.Claims()); err != nil {
		s.logger.Error("unable to encode claims", "error", err)
	}
}
