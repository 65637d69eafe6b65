package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-delivery/internal/pkg/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrEmptyCart, http.StatusBadRequest},
		{errors.Wrap(apperr.ErrOrderNotFound, "load"), http.StatusNotFound},
		{apperr.ErrAddressNotOwned, http.StatusForbidden},
		{apperr.ErrIllegalTransition, http.StatusConflict},
		{apperr.ErrInsufficientBalance, http.StatusPaymentRequired},
		{apperr.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, errors.New("dsn root:secret@tcp"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestActorIDRequiresHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := ActorID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u-1")
	id, ok := ActorID(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)
}
