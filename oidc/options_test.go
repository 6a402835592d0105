// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	// ApplyOpts testing is covered by other tests but we do have just more
	// more test to add here.
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_WithLogger(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	l := hclog.NewNullLogger()

	cOpts := getConfigOpts(WithLogger(l))
	testCOpts := configDefaults()
	testCOpts.withLogger = l
	assert.Equal(testCOpts, cOpts)

	vOpts := getValidatorOpts(WithLogger(l))
	testVOpts := validatorDefaults()
	testVOpts.withLogger = l
	assert.Equal(testVOpts, vOpts)
}

func Test_WithNow(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := getFlowOpts(WithNow(func() time.Time { return fixed }))
	assert.Equal(fixed, opts.withNowFunc())

	opts = getFlowOpts(WithNow(nil))
	assert.NotNil(opts.withNowFunc)
}

func Test_WithObserver(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	obs := &testObserver{}
	assert.Equal(obs, getFlowOpts(WithObserver(obs)).withObserver)
	assert.Equal(obs, getValidatorOpts(WithObserver(obs)).withObserver)
	assert.Equal(nopObserver{}, getFlowOpts(WithObserver(nil)).withObserver)
}
