package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct coded error", func(t *testing.T) {
		err := New(CodeNotSetUp, "domain is not set up")
		assert.True(t, HasCode(err, CodeNotSetUp))
		assert.False(t, HasCode(err, CodeAlreadySetUp))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("register: %w", New(CodeSubdomainUnavailable, "taken"))
		assert.True(t, HasCode(err, CodeSubdomainUnavailable))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")

	err := Wrap(cause, CodeCollaboratorFailure, "custodian call failed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "custodian call failed: connection refused", err.Error())
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeForbidden:            http.StatusForbidden,
		CodeNotSetUp:             http.StatusConflict,
		CodeAlreadySetUp:         http.StatusConflict,
		CodeSubdomainUnavailable: http.StatusConflict,
		CodeInvalidDuration:      http.StatusBadRequest,
		CodeOracleRejected:       http.StatusUnprocessableEntity,
		CodeCollaboratorFailure:  http.StatusBadGateway,
		Code("mystery"):          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
