package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syslua/syslua/pkg/engineerr"
)

func TestExitCodeForTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("boom"), exitGeneric},
		{"validation", &engineerr.ValidationError{Summary: "bad"}, exitValidation},
		{"lock", &engineerr.LockError{Mode: "exclusive"}, exitLock},
		{"action", &engineerr.ActionError{}, exitAction},
		{"rollback", &engineerr.RollbackError{}, exitRollback},
		{"store", &engineerr.StoreError{}, exitStore},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, exitCodeFor(c.err))
		})
	}
}

func TestExitCodeForWrappedError(t *testing.T) {
	wrapped := errors.New("context: " + (&engineerr.LockError{Mode: "shared"}).Error())
	assert.Equal(t, exitGeneric, exitCodeFor(wrapped), "a stringly-wrapped error without %%w does not unwrap")

	viaFmtWrap := errorsJoinWrap(&engineerr.ActionError{})
	assert.Equal(t, exitAction, exitCodeFor(viaFmtWrap))
}

func errorsJoinWrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
