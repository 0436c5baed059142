package models

import (
	"leasehold/pkg/domain"
	dErrors "leasehold/pkg/domain-errors"
)

// ErrUnauthorised names the domain token and the rejected caller.
func ErrUnauthorised(node domain.Node, caller domain.Address) error {
	return dErrors.Newf(dErrors.CodeForbidden, "unauthorised(%s, %s)", node.TokenID(), caller)
}

func ErrNotSetUp(node domain.Node) error {
	return dErrors.Newf(dErrors.CodeNotSetUp, "domain %s is not set up", node)
}

func ErrAlreadySetUp(node domain.Node) error {
	return dErrors.Newf(dErrors.CodeAlreadySetUp, "domain %s is already set up", node)
}

func ErrSubdomainUnavailable(node domain.Node) error {
	return dErrors.Newf(dErrors.CodeSubdomainUnavailable, "subdomain %s is not available", node)
}

func ErrOracleRejected(reason string) error {
	if reason == "" {
		reason = "registration not allowed"
	}
	return dErrors.Newf(dErrors.CodeOracleRejected, "oracle rejected registration: %s", reason)
}

func ErrNoOracleBound(node domain.Node) error {
	return dErrors.Newf(dErrors.CodeNoOracleBound, "no oracle bound to domain %s", node)
}

func ErrInvalidDuration() error {
	return dErrors.New(dErrors.CodeInvalidDuration, "duration must be positive")
}
