// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

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

// WithLogger provides an optional logger for: Config, Validator
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withLogger = l
		case *validatorOptions:
			v.withLogger = l
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is, for: Flow
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*flowOptions); ok {
			v.withNowFunc = now
		}
	}
}

// WithObserver provides an optional Observer for: Flow, Validator
func WithObserver(obs Observer) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *flowOptions:
			v.withObserver = obs
		case *validatorOptions:
			v.withObserver = obs
		}
	}
}
