package respond

import (
	"github.com/gin-gonic/gin"

	"rowshare-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// FlatError is the plain error body used by the row-share routes.
type FlatError struct {
	Error           string   `json:"error"`
	Troubleshooting []string `json:"troubleshooting,omitempty"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	logError(c, status, code, message)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Fail sends a flat {"error": message} response.
func Fail(c *gin.Context, status int, message string) {
	logError(c, status, "", message)
	c.AbortWithStatusJSON(status, FlatError{Error: message})
}

// FailWithHints sends a flat error carrying troubleshooting hints.
func FailWithHints(c *gin.Context, status int, message string, hints []string) {
	logError(c, status, "", message)
	c.AbortWithStatusJSON(status, FlatError{Error: message, Troubleshooting: hints})
}

func logError(c *gin.Context, status int, code, message string) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if code != "" {
		fields["code"] = code
	}
	if email := c.GetString("email"); email != "" {
		fields["email"] = email
	}
	telemetry.Error("http.error", fields)
}
