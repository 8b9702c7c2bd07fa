package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfClassifiedError(t *testing.T) {
	assert.Equal(t, ErrKindAuth, KindOf(AuthFailure("token rejected", nil)))
	assert.Equal(t, ErrKindPermanent, KindOf(Permanent("bad input", nil)))
	assert.Equal(t, ErrKindTransient, KindOf(Transient("timeout", nil)))
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("publish step: %w", AuthFailure("token rejected", nil))
	assert.Equal(t, ErrKindAuth, KindOf(err))
}

func TestKindOfUnclassifiedDefaultsTransient(t *testing.T) {
	assert.Equal(t, ErrKindTransient, KindOf(errors.New("connection reset")))
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, ErrKindAuth},
		{http.StatusForbidden, ErrKindAuth},
		{http.StatusTooManyRequests, ErrKindRateLimited},
		{http.StatusInternalServerError, ErrKindTransient},
		{http.StatusBadGateway, ErrKindTransient},
		{http.StatusBadRequest, ErrKindPermanent},
		{http.StatusNotFound, ErrKindPermanent},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.kind, FromHTTPStatus(tc.status, "x").Kind, "status %d", tc.status)
	}
}

func TestRelayErrorUnwrap(t *testing.T) {
	cause := errors.New("eof")
	err := Transient("download interrupted", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient")
	assert.Contains(t, err.Error(), "download interrupted")
}
