package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lifeflow-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// statusCodes maps application error codes to HTTP statuses. Workflow errors
// are client-facing conflicts or bad input, never 500s.
var statusCodes = map[errors.ErrorCode]int{
	errors.ErrNotFound:                 http.StatusNotFound,
	errors.ErrBadRequest:               http.StatusBadRequest,
	errors.ErrUnauthorized:             http.StatusUnauthorized,
	errors.ErrForbidden:                http.StatusForbidden,
	errors.ErrConflict:                 http.StatusConflict,
	errors.ErrInternal:                 http.StatusInternalServerError,
	errors.ErrValidation:               http.StatusBadRequest,
	errors.ErrInvalidTransition:        http.StatusConflict,
	errors.ErrPrecondition:             http.StatusConflict,
	errors.ErrNotEligible:              http.StatusConflict,
	errors.ErrBloodGroupMismatch:       http.StatusConflict,
	errors.ErrDuplicateOptIn:           http.StatusConflict,
	errors.ErrRequestNotAvailable:      http.StatusConflict,
	errors.ErrReassignmentWindowClosed: http.StatusConflict,
}

// StatusCode returns the HTTP status for an error.
func StatusCode(err error) int {
	if code, ok := statusCodes[errors.Code(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	c.JSON(status, Response{
		Status:  "error",
		Message: message,
	})
}
