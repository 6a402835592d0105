// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"

	"github.com/hashicorp/cap-connect/oidc/internal/strutils"
)

// ClaimType is the json type of a claim's value.
type ClaimType string

const (
	ClaimString  ClaimType = "string"
	ClaimBoolean ClaimType = "boolean"
	ClaimJSON    ClaimType = "json"
	ClaimNumber  ClaimType = "number"
)

// Standard scopes which own the catalog's claims.
const (
	ScopeOpenId  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
	ScopePhone   = "phone"
	ScopeAddress = "address"
)

// baseScopes are always requested: openid is required by the protocol and
// email is required to link the user to a local account.
var baseScopes = []string{ScopeOpenId, ScopeEmail}

// Claim describes a standard claim and the scope that grants it.
// See: https://openid.net/specs/openid-connect-core-1_0.html#StandardClaims
type Claim struct {
	Id          string    `json:"id"`
	Scope       string    `json:"scope"`
	Title       string    `json:"title"`
	Type        ClaimType `json:"type"`
	Description string    `json:"description"`
}

// ClaimsCatalog is an immutable catalog of claims.
type ClaimsCatalog struct {
	claims map[string]Claim
	order  []string
}

// DefaultClaims is the catalog of standard OIDC claims.
var DefaultClaims = NewClaimsCatalog(
	Claim{"name", ScopeProfile, "Name", ClaimString, "Full name"},
	Claim{"given_name", ScopeProfile, "Given name", ClaimString, "Given name(s) or first name(s)"},
	Claim{"family_name", ScopeProfile, "Family name", ClaimString, "Surname(s) or last name(s)"},
	Claim{"middle_name", ScopeProfile, "Middle name", ClaimString, "Middle name(s)"},
	Claim{"nickname", ScopeProfile, "Nickname", ClaimString, "Casual name"},
	Claim{"preferred_username", ScopeProfile, "Preferred username", ClaimString, "Shorthand name by which the End-User wishes to be referred to"},
	Claim{"profile", ScopeProfile, "Profile", ClaimString, "Profile page URL"},
	Claim{"picture", ScopeProfile, "Picture", ClaimString, "Profile picture URL"},
	Claim{"website", ScopeProfile, "Website", ClaimString, "Web page or blog URL"},
	Claim{"email", ScopeEmail, "Email", ClaimString, "Preferred e-mail address"},
	Claim{"email_verified", ScopeEmail, "Email verified", ClaimBoolean, "True if the e-mail address has been verified; otherwise false"},
	Claim{"gender", ScopeProfile, "Gender", ClaimString, "Gender"},
	Claim{"birthdate", ScopeProfile, "Birthdate", ClaimString, "Birthday"},
	Claim{"zoneinfo", ScopeProfile, "Zoneinfo", ClaimString, "Time zone"},
	Claim{"locale", ScopeProfile, "Locale", ClaimString, "Locale"},
	Claim{"phone_number", ScopePhone, "Phone number", ClaimString, "Preferred telephone number"},
	Claim{"phone_number_verified", ScopePhone, "Phone number verified", ClaimBoolean, "True if the phone number has been verified; otherwise false"},
	Claim{"address", ScopeAddress, "Address", ClaimJSON, "Preferred postal address"},
	Claim{"updated_at", ScopeProfile, "Updated at", ClaimNumber, "Time the information was last updated"},
)

// NewClaimsCatalog creates a catalog from the claims in the order given. A
// claim with a duplicate id replaces the earlier one.
func NewClaimsCatalog(claims ...Claim) *ClaimsCatalog {
	c := &ClaimsCatalog{
		claims: make(map[string]Claim, len(claims)),
		order:  make([]string, 0, len(claims)),
	}
	for _, cl := range claims {
		if _, ok := c.claims[cl.Id]; !ok {
			c.order = append(c.order, cl.Id)
		}
		c.claims[cl.Id] = cl
	}
	return c
}

// Claims returns a copy of the catalog keyed by claim id.
func (c *ClaimsCatalog) Claims() map[string]Claim {
	cp := make(map[string]Claim, len(c.claims))
	for k, v := range c.claims {
		cp[k] = v
	}
	return cp
}

// Ids returns the claim ids in catalog order.
func (c *ClaimsCatalog) Ids() []string {
	return append([]string(nil), c.order...)
}

// Lookup returns the claim for the id and whether it exists.
func (c *ClaimsCatalog) Lookup(id string) (Claim, bool) {
	cl, ok := c.claims[id]
	return cl, ok
}

// ScopeList returns the scopes needed to receive the requested claims: the
// base scopes "openid" and "email", followed by the scope of each known
// claim in order of first appearance. Unknown claim ids are ignored.
func (c *ClaimsCatalog) ScopeList(requested []string) []string {
	scopes := append([]string(nil), baseScopes...)
	for _, id := range requested {
		cl, ok := c.claims[id]
		if !ok || strutils.StrListContains(scopes, cl.Scope) {
			continue
		}
		scopes = append(scopes, cl.Scope)
	}
	return scopes
}

// Scopes returns ScopeList as a single space separated string, which is the
// form used for the "scope" authorization request parameter.
func (c *ClaimsCatalog) Scopes(requested []string) string {
	return strings.Join(c.ScopeList(requested), " ")
}
