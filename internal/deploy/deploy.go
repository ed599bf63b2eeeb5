// Package deploy holds the deployment-type value type shared by
// pkg/context/xctx (request-scoped, via context.Context) and
// pkg/context/xenv (process-scoped, via a package-level global). Kept
// internal so neither public package re-exports a third concept — both
// alias deploy.Type rather than defining their own.
package deploy

import (
	"errors"
	"strings"
)

// ErrMissingValue is returned by Parse when s is empty or all whitespace.
var ErrMissingValue = errors.New("deploy: empty deployment type value")

// ErrInvalidType is returned by Parse when s is neither LOCAL nor SAAS.
var ErrInvalidType = errors.New("deploy: invalid deployment type")

// Type is a deployment type: local/private-cloud (Local) or multi-tenant
// SaaS (SaaS). The zero value is not a valid Type.
type Type string

const (
	// Local designates a local or private-cloud deployment.
	Local Type = "LOCAL"
	// SaaS designates a multi-tenant SaaS deployment.
	SaaS Type = "SAAS"
)

// IsValid reports whether t is one of the known deployment types.
func (t Type) IsValid() bool {
	return t == Local || t == SaaS
}

// IsLocal reports whether t is Local.
func (t Type) IsLocal() bool { return t == Local }

// IsSaaS reports whether t is SaaS.
func (t Type) IsSaaS() bool { return t == SaaS }

// String returns t as its raw string value.
func (t Type) String() string { return string(t) }

// Parse parses s into a Type, case-insensitively, trimming surrounding
// whitespace. Returns ErrMissingValue for an empty/blank s, ErrInvalidType
// for any other value that isn't LOCAL or SAAS.
func Parse(s string) (Type, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrMissingValue
	}
	switch Type(strings.ToUpper(trimmed)) {
	case Local:
		return Local, nil
	case SaaS:
		return SaaS, nil
	default:
		return "", ErrInvalidType
	}
}
