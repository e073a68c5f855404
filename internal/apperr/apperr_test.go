package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"not found", NotFound("chat not found"), http.StatusNotFound},
		{"unavailable", Unavailable("store", errors.New("down")), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("find: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("send: %w", Forbidden("nope")), http.StatusForbidden},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestMessage_HidesInternalDetails(t *testing.T) {
	req := require.New(t)
	req.Equal("chat not found", Message(NotFound("chat not found")))
	req.Equal("internal error", Message(errors.New("password=hunter2")))
	req.Equal("service unavailable", Message(context.DeadlineExceeded))

	cause := errors.New("connection refused")
	err := Unavailable("store unavailable", cause)
	req.ErrorIs(err, cause)
	req.Equal("store unavailable", Message(err))
}
