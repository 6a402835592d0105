// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "time"

// Provider endpoints reported to an Observer.
const (
	EndpointToken    = "token"
	EndpointUserInfo = "userinfo"
)

// Observer is notified of flow events; it's intended for metrics. An
// Observer must be safe for concurrent use and must not block.
type Observer interface {
	// ObserveOutcome is called once per handled provider response.
	ObserveOutcome(clientType string, o Outcome)

	// ObserveProviderRequest is called after every request to the provider's
	// token or userinfo endpoint. err is the request's error, if any.
	ObserveProviderRequest(clientType, endpoint string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(string, Outcome)                               {}
func (nopObserver) ObserveProviderRequest(string, string, time.Duration, error) {}
