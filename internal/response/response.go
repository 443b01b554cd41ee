package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
)

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before the response was ready.
const StatusClientClosedRequest = 499

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 response with a validation message.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, failure.KindValidation, message)
}

// Error writes the response for err, choosing the status from its failure kind.
func Error(c *gin.Context, err error) {
	kind := failure.KindOf(err)
	message := err.Error()
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Message != "" {
		message = fe.Message
	}
	if StatusFor(kind) == http.StatusInternalServerError {
		message = "internal server error"
	}
	_ = c.Error(err)
	abort(c, StatusFor(kind), kind, message)
}

// StatusFor maps a failure kind to an HTTP status.
func StatusFor(kind failure.Kind) int {
	switch kind {
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindRateLimited:
		return http.StatusTooManyRequests
	case failure.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case failure.KindServiceUnavailable, failure.KindNetworkUnreachable, failure.KindMalformedResponse:
		return http.StatusServiceUnavailable
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, kind failure.Kind, message string) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   &ErrorBody{Kind: kind.String(), Message: message},
	})
}
