package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation(ReasonBadInput, "bad"), http.StatusBadRequest},
		{NotFound(ReasonSessionNotFound, "gone"), http.StatusNotFound},
		{Policy(ReasonOutOfRange, "too far"), http.StatusForbidden},
		{Policy(ReasonAlreadyMarked, "dup"), http.StatusConflict},
		{Transient("db down", errors.New("timeout")), http.StatusServiceUnavailable},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("bare"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err))
	}
}

func TestClassifiersUnwrapThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handling request: %w", Policy(ReasonOriginConflict, "origin reuse"))
	assert.Equal(t, KindPolicy, KindOf(err))
	assert.Equal(t, ReasonOriginConflict, ReasonOf(err))
}

func TestDefaultClassification(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("anything")))
	assert.Equal(t, ReasonInternal, ReasonOf(errors.New("anything")))
}
