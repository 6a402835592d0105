// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/cap-connect/oidc/internal/strutils"
)

// Outcome is the result of handling a provider response.
type Outcome int

const (
	// OutcomeInvalidEntry means the request was not a provider response at
	// all: it carried neither "error" nor "code". Hosts should answer 404.
	OutcomeInvalidEntry Outcome = iota

	// OutcomeForgeryRejected means the "state" did not match the session's
	// state token.
	OutcomeForgeryRejected

	// OutcomeCancelled means the user did not complete the interaction with
	// the provider or did not grant consent.
	OutcomeCancelled

	// OutcomeProviderError means the provider returned an error, or the code
	// exchange, id_token verification or userinfo fetch failed.
	OutcomeProviderError

	// OutcomeAuthenticated means the user is authenticated and UserInfo is
	// available.
	OutcomeAuthenticated
)

// String returns the outcome's name.
func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidEntry:
		return "invalid_entry"
	case OutcomeForgeryRejected:
		return "forgery_rejected"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Error codes set on a Disposition when the failure happened after the
// provider's response was accepted.
const (
	ErrorCodeExchangeFailed = "exchange_failed"
	ErrorCodeInvalidIdToken = "invalid_id_token"
	ErrorCodeUserInfoFailed = "userinfo_failed"
)

// cancelErrors are the authentication error codes which mean the user did
// not finish the interaction or refused consent.
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthError
var cancelErrors = []string{
	"interaction_required",
	"login_required",
	"account_selection_required",
	"consent_required",
}

// Disposition is the result of handling a provider response, it tells the
// host what to do with the user-agent.
type Disposition struct {
	Outcome Outcome

	// Label is the provider label used in messages.
	Label string

	// UserInfo and Tokens are set when the Outcome is OutcomeAuthenticated.
	UserInfo UserInfo
	Tokens   *TokenSet

	// ErrorCode and ErrorDescription are set when the Outcome is
	// OutcomeCancelled or OutcomeProviderError.
	ErrorCode        string
	ErrorDescription string

	// Err is the failure behind an OutcomeProviderError raised locally.
	Err error
}

// Message returns a message suitable for the end user. It never contains
// provider error details.
func (d *Disposition) Message() string {
	switch d.Outcome {
	case OutcomeCancelled:
		return fmt.Sprintf("Logging in with %s has been cancelled.", d.Label)
	case OutcomeProviderError, OutcomeForgeryRejected:
		return fmt.Sprintf("Could not authenticate with %s.", d.Label)
	default:
		return ""
	}
}

// RedirectUrl returns where the user-agent should be sent: the success URL
// for OutcomeAuthenticated, "" for OutcomeInvalidEntry and the failure URL
// otherwise.
func (d *Disposition) RedirectUrl(c *Config) string {
	switch d.Outcome {
	case OutcomeAuthenticated:
		return c.SuccessRedirect()
	case OutcomeInvalidEntry:
		return ""
	default:
		return c.FailureRedirect()
	}
}

// Validator handles the provider's response to an authorization request.
// It's immutable and safe for concurrent use.
type Validator struct {
	flow     *Flow
	sink     TokenSink
	observer Observer
	logger   hclog.Logger
}

// NewValidator creates a Validator for the flow. The logger defaults to the
// flow Config's logger.
//
// Supported options:
//   - WithTokenSink
//   - WithObserver
//   - WithLogger
func NewValidator(f *Flow, opt ...Option) (*Validator, error) {
	const op = "NewValidator"
	if f == nil {
		return nil, fmt.Errorf("%s: flow is nil: %w", op, ErrNilParameter)
	}
	opts := getValidatorOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = f.config.logger()
	}
	obs := opts.withObserver
	if obs == nil {
		obs = f.observer
	}
	return &Validator{
		flow:     f,
		sink:     opts.withTokenSink,
		observer: obs,
		logger:   logger.With("provider", f.Label()),
	}, nil
}

// Flow returns the validator's flow.
func (v *Validator) Flow() *Flow { return v.flow }

// Handle validates the provider response query and completes the flow. The
// "state" is always confirmed before anything else in the response is
// acted upon, which also consumes the state token. An empty "error" or
// "code" parameter counts as absent. The session is saved once, after both
// tokens are consumed.
//
// Every per attempt failure is reported through the returned Disposition.
// Errors are returned for session and token sink faults only.
func (v *Validator) Handle(ctx context.Context, ts *TokenStore, q url.Values) (*Disposition, error) {
	const op = "Validator.Handle"
	if ts == nil {
		return nil, fmt.Errorf("%s: token store is nil: %w", op, ErrNilParameter)
	}
	d, err := v.handle(ctx, ts, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ts.save(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.observer.ObserveOutcome(v.flow.clientType.Type(), d.Outcome)
	return d, nil
}

func (v *Validator) handle(ctx context.Context, ts *TokenStore, q url.Values) (*Disposition, error) {
	d := &Disposition{Label: v.flow.Label()}
	errCode, code := q.Get("error"), q.Get("code")
	if errCode == "" && code == "" {
		d.Outcome = OutcomeInvalidEntry
		return d, nil
	}

	ok, err := ts.confirm(ctx, StateTokenName, q.Get("state"))
	if err != nil {
		return nil, err
	}
	if !ok {
		v.logger.Warn("rejected response with an invalid state")
		d.Outcome = OutcomeForgeryRejected
		return v.discardNonce(ctx, ts, d)
	}

	if errCode != "" {
		d.ErrorCode = errCode
		d.ErrorDescription = q.Get("error_description")
		if strutils.StrListContains(cancelErrors, d.ErrorCode) {
			v.logger.Info("authentication cancelled", "error", d.ErrorCode)
			d.Outcome = OutcomeCancelled
		} else {
			v.providerError(d, d.ErrorCode, d.ErrorDescription, nil)
		}
		return v.discardNonce(ctx, ts, d)
	}

	tokens, err := v.flow.ExchangeCode(ctx, code)
	if err != nil {
		code, desc := ErrorCodeExchangeFailed, err.Error()
		var te *TokenError
		if errors.As(err, &te) {
			desc = te.Error()
		}
		v.providerError(d, code, desc, err)
		return v.discardNonce(ctx, ts, d)
	}

	if tokens.IdToken != "" {
		if _, err := v.flow.verifyIdToken(ctx, ts, tokens.IdToken); err != nil {
			if errors.Is(err, ErrSessionUnavailable) {
				return nil, err
			}
			v.providerError(d, ErrorCodeInvalidIdToken, err.Error(), err)
			return d, nil
		}
	} else if _, err := v.discardNonce(ctx, ts, d); err != nil {
		return nil, err
	}

	info, err := v.flow.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		v.providerError(d, ErrorCodeUserInfoFailed, err.Error(), err)
		return d, nil
	}

	if v.sink != nil {
		if err := v.sink.StoreTokens(ctx, v.flow.clientType.Type(), tokens); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenSinkFailed, err)
		}
	}

	v.logger.Debug("authenticated", "sub", info.Subject())
	d.Outcome = OutcomeAuthenticated
	d.UserInfo = info
	d.Tokens = tokens
	return d, nil
}

func (v *Validator) providerError(d *Disposition, code, desc string, err error) {
	if desc == "" {
		desc = "Unknown error."
	}
	v.logger.Error("authorization failed", "error", code, "error_description", desc)
	d.Outcome = OutcomeProviderError
	d.ErrorCode = code
	d.ErrorDescription = desc
	d.Err = err
}

// discardNonce destroys the nonce token of an attempt which will not reach
// id_token verification.
func (v *Validator) discardNonce(ctx context.Context, ts *TokenStore, d *Disposition) (*Disposition, error) {
	if err := ts.remove(ctx, NonceTokenName); err != nil {
		return nil, err
	}
	return d, nil
}

// validatorOptions is the set of available options for Validator
type validatorOptions struct {
	withTokenSink TokenSink
	withObserver  Observer
	withLogger    hclog.Logger
}

func validatorDefaults() validatorOptions {
	return validatorOptions{}
}

func getValidatorOpts(opt ...Option) validatorOptions {
	opts := validatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTokenSink provides an optional sink for the tokens of a successful
// authentication.
func WithTokenSink(s TokenSink) Option {
	return func(o interface{}) {
		if o, ok := o.(*validatorOptions); ok {
			o.withTokenSink = s
		}
	}
}
