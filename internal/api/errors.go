package api

import (
	"errors"
	"net/http"

	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string                `json:"error"`
	Message   string                `json:"message"`
	Problems  []negotiation.Problem `json:"problems,omitempty"`
	Retryable bool                  `json:"retryable,omitempty"`
}

// errorCode maps an error to its stable code and HTTP status.
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, negotiation.ErrValidation):
		return "validation_failed", http.StatusUnprocessableEntity
	case errors.Is(err, negotiation.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, negotiation.ErrConcurrentModification):
		return "concurrent_modification", http.StatusConflict
	case errors.Is(err, negotiation.ErrInvalidTransition):
		return "invalid_transition", http.StatusConflict
	case errors.Is(err, negotiation.ErrInconsistentState):
		return "inconsistent_state", http.StatusConflict
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

func errorBody(err error) (ErrorResponse, int) {
	code, status := errorCode(err)
	resp := ErrorResponse{Error: code, Message: err.Error()}

	var ve *negotiation.ValidationError
	if errors.As(err, &ve) {
		resp.Problems = ve.Problems
	}
	if errors.Is(err, negotiation.ErrConcurrentModification) {
		resp.Retryable = true
	}
	if status == http.StatusInternalServerError {
		resp.Message = "internal server error"
	}
	return resp, status
}

func writeError(c *gin.Context, err error) {
	resp, status := errorBody(err)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: "bad_request", Message: message}
	if err != nil {
		resp.Message = message + ": " + err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
