// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "net/http"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type keySetOptions struct {
	withHttpClient *http.Client
	withCAPem      string
}

func keySetDefaults() keySetOptions {
	return keySetOptions{}
}

// getKeySetOpts gets the defaults and applies the opt overrides passed
// in.
func getKeySetOpts(opt ...Option) keySetOptions {
	opts := keySetDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

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

// WithHttpClient provides the http client used to fetch remote keys. It takes
// precedence over WithCAPem.
func WithHttpClient(c *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*keySetOptions); ok {
			v.withHttpClient = c
		}
	}
}

// WithCAPem provides a PEM encoded CA certificate used to verify the server
// which publishes remote keys.
func WithCAPem(pem string) Option {
	return func(o interface{}) {
		if v, ok := o.(*keySetOptions); ok {
			v.withCAPem = pem
		}
	}
}
