// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// MinTokenBytes is the smallest number of random bytes NewToken will accept,
// which gives 128 bits of entropy.
const MinTokenBytes = 16

var ErrTokenTooShort = errors.New("token length is too short")

// NewToken generates an opaque token from n cryptographically random bytes,
// encoded with unpadded base64url so it is safe to use in a query string.
func NewToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("%d bytes requested, %d required: %w", n, MinTokenBytes, ErrTokenTooShort)
	}
	b, err := uuid.GenerateRandomBytes(n)
	if err != nil {
		return "", fmt.Errorf("unable to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
