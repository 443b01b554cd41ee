package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind failure.Kind
		want int
	}{
		{failure.KindNotFound, http.StatusNotFound},
		{failure.KindRateLimited, http.StatusTooManyRequests},
		{failure.KindPreconditionFailed, http.StatusPreconditionFailed},
		{failure.KindServiceUnavailable, http.StatusServiceUnavailable},
		{failure.KindNetworkUnreachable, http.StatusServiceUnavailable},
		{failure.KindMalformedResponse, http.StatusServiceUnavailable},
		{failure.KindValidation, http.StatusBadRequest},
		{failure.KindCancelled, StatusClientClosedRequest},
		{failure.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestError_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, failure.NewPreconditionError("origin is not resolved to coordinates"))

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "precondition_failed", body.Error.Kind)
	assert.Equal(t, "origin is not resolved to coordinates", body.Error.Message)
}

func TestError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"ok": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"ok":true}}`, w.Body.String())
}
