package main

import (
	"errors"

	"github.com/syslua/syslua/pkg/engineerr"
)

// Exit codes distinguish the error taxonomy (§7) so scripts driving syslua
// can branch without parsing messages.
const (
	exitGeneric    = 1
	exitValidation = 2
	exitLock       = 3
	exitAction     = 4
	exitRollback   = 5
	exitStore      = 6
)

func exitCodeFor(err error) int {
	var validationErr *engineerr.ValidationError
	var lockErr *engineerr.LockError
	var actionErr *engineerr.ActionError
	var rollbackErr *engineerr.RollbackError
	var storeErr *engineerr.StoreError

	switch {
	case errors.As(err, &validationErr):
		return exitValidation
	case errors.As(err, &lockErr):
		return exitLock
	case errors.As(err, &rollbackErr):
		return exitRollback
	case errors.As(err, &actionErr):
		return exitAction
	case errors.As(err, &storeErr):
		return exitStore
	default:
		return exitGeneric
	}
}
