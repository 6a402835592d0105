// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package metrics records the outcomes of authentication attempts, the
// latency of requests to providers and the http requests served by the
// login handlers with Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hashicorp/cap-connect/oidc"
)

// Namespace is the namespace of every metric.
const Namespace = "oidc_connect"

// Labels.
const (
	LabelClientType = "client_type"
	LabelOutcome    = "outcome"
	LabelEndpoint   = "endpoint"
	LabelResult     = "result"
	LabelHandler    = "handler"
	LabelCode       = "code"
	LabelMethod     = "method"
)

var ErrNilRegisterer = errors.New("registerer is nil")

// Recorder is an oidc.Observer which records with Prometheus.
type Recorder struct {
	outcomes         *prometheus.CounterVec
	providerRequests *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

var _ oidc.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	const op = "metrics.NewRecorder"
	if reg == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNilRegisterer)
	}
	r := &Recorder{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authentication_outcomes_total",
			Help:      "Count of handled provider responses by outcome.",
		}, []string{LabelClientType, LabelOutcome}),
		providerRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of requests to the providers' token and userinfo endpoints.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelClientType, LabelEndpoint, LabelResult}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Count of all HTTP requests.",
		}, []string{LabelHandler, LabelCode, LabelMethod}),
	}
	for _, c := range []prometheus.Collector{r.outcomes, r.providerRequests, r.httpRequests} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: unable to register collector: %w", op, err)
		}
	}
	return r, nil
}

// ObserveOutcome counts a handled provider response.
func (r *Recorder) ObserveOutcome(clientType string, o oidc.Outcome) {
	r.outcomes.WithLabelValues(clientType, o.String()).Inc()
}

// ObserveProviderRequest records the latency of a request to a provider.
func (r *Recorder) ObserveProviderRequest(clientType, endpoint string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.providerRequests.WithLabelValues(clientType, endpoint, result).Observe(d.Seconds())
}

// InstrumentHandler counts the requests served by h under the handler name.
func (r *Recorder) InstrumentHandler(name string, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		m := httpsnoop.CaptureMetrics(h, w, req)
		r.httpRequests.With(prometheus.Labels{
			LabelHandler: name,
			LabelCode:    strconv.Itoa(m.Code),
			LabelMethod:  req.Method,
		}).Inc()
	}
}
