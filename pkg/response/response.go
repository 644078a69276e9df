package response

import (
	"net/http"

	"paywall-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
}

// ErrorBody is the nested error object of the gateway's error envelope.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse is the standard error envelope: {"error": {code, message, details?}}.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, RequestID: getRequestID(c)})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data, RequestID: getRequestID(c)})
}

// Error sends an error response, translating err to {status, code, safe_message}
// via a single translator as required by the error handling design.
func Error(c *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			Error:     ErrorBody{Code: appErr.Code, Message: appErr.Message},
			RequestID: getRequestID(c),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:     ErrorBody{Code: "internal_error", Message: "an internal error occurred"},
		RequestID: getRequestID(c),
	})
}

func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
