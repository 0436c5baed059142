package service

import (
	"errors"

	dErrors "leasehold/pkg/domain-errors"
)

// wrapStoreErr keeps coded errors (timeouts, conflicts from the tx runner) and
// wraps everything else as internal.
func wrapStoreErr(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// collaboratorErr marks a Custodian or Oracle failure. The operation aborts
// and is not retried.
func collaboratorErr(what string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeCollaboratorFailure, what+" failed")
}
