// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ghodss/yaml"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/cap-connect/oidc"
)

// providersFile is the format of the providers file. Values may reference
// environment variables with ${NAME}.
type providersFile struct {
	Providers map[string]providerConfig `json:"providers"`
}

type providerConfig struct {
	Type              string            `json:"type"`
	Label             string            `json:"label,omitempty"`
	ClientId          string            `json:"client_id"`
	ClientSecret      string            `json:"client_secret"`
	Claims            []string          `json:"claims,omitempty"`
	Settings          map[string]string `json:"settings,omitempty"`
	SuccessUrl        string            `json:"success_url,omitempty"`
	FailureUrl        string            `json:"failure_url,omitempty"`
	CustomAuthParams  map[string]string `json:"custom_auth_params,omitempty"`
	CustomTokenParams map[string]string `json:"custom_token_params,omitempty"`
	ProviderCA        string            `json:"provider_ca,omitempty"`
	Timeout           string            `json:"timeout,omitempty"`
}

// provider is a configured provider, ready to serve.
type provider struct {
	name      string
	flow      *oidc.Flow
	validator *oidc.Validator
}

// loadProviders reads the providers file and builds a provider for each
// entry. The redirect URL of a provider is {baseUrl}/callback/{name}.
func loadProviders(path, baseUrl string, logger hclog.Logger, flowOpt ...oidc.Option) (map[string]*provider, error) {
	const op = "loadProviders"
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var pf providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &pf); err != nil {
		return nil, fmt.Errorf("%s: unable to parse %s: %w", op, path, err)
	}
	if len(pf.Providers) == 0 {
		return nil, fmt.Errorf("%s: %s has no providers", op, path)
	}

	names := make([]string, 0, len(pf.Providers))
	for name := range pf.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var result *multierror.Error
	providers := make(map[string]*provider, len(names))
	for _, name := range names {
		p, err := newProvider(name, pf.Providers[name], baseUrl, logger.Named(name), flowOpt...)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("provider %q: %w", name, err))
			continue
		}
		providers[name] = p
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return providers, nil
}

func newProvider(name string, pc providerConfig, baseUrl string, logger hclog.Logger, flowOpt ...oidc.Option) (*provider, error) {
	ct, err := oidc.NewClientType(pc.Type, pc.Settings)
	if err != nil {
		return nil, err
	}
	opts := []oidc.Option{
		oidc.WithLabel(pc.Label),
		oidc.WithClaims(pc.Claims...),
		oidc.WithCustomAuthParams(pc.CustomAuthParams),
		oidc.WithCustomTokenParams(pc.CustomTokenParams),
		oidc.WithProviderCA(pc.ProviderCA),
		oidc.WithLogger(logger),
	}
	if pc.SuccessUrl != "" {
		opts = append(opts, oidc.WithSuccessUrl(pc.SuccessUrl))
	}
	if pc.FailureUrl != "" {
		opts = append(opts, oidc.WithFailureUrl(pc.FailureUrl))
	}
	if pc.Timeout != "" {
		d, err := time.ParseDuration(pc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		opts = append(opts, oidc.WithTimeout(d))
	}
	c, err := oidc.NewConfig(pc.ClientId, oidc.ClientSecret(pc.ClientSecret), baseUrl+"/callback/"+name, opts...)
	if err != nil {
		return nil, err
	}
	f, err := oidc.NewFlow(c, ct, flowOpt...)
	if err != nil {
		return nil, err
	}
	v, err := oidc.NewValidator(f)
	if err != nil {
		return nil, err
	}
	return &provider{name: name, flow: f, validator: v}, nil
}
