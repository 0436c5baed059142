// Package sentinel holds the store-level facts the leasing service translates
// into coded errors.
package sentinel

import "errors"

var (
	// ErrNotFound: no domain record or lease is stored under the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the write lost a race with a concurrent transaction.
	ErrConflict = errors.New("conflict")
)
