package response

import (
	"errors"
	"net/http"
	"time"

	"ledger-core/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// HeaderRequestID echoes the request id back to the caller.
const HeaderRequestID = "X-Request-ID"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

func success(c *gin.Context, status int, data interface{}) {
	id := RequestID(c)
	c.Header(HeaderRequestID, id)
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: id,
		Timestamp: now(),
	})
}

// Error maps err to its envelope. Anything that is not an
// *apperror.AppError becomes a 500 with a generic message.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}

	id := RequestID(c)
	c.Header(HeaderRequestID, id)
	if appErr.Code == apperror.CodeLockTimeout {
		c.Header("Retry-After", "1")
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: id,
		Timestamp: now(),
	})
}

// RequestID returns the id set by the request-id middleware, or a fresh
// one when the middleware did not run.
func RequestID(c *gin.Context) string {
	if s := c.GetString(RequestIDKey); s != "" {
		return s
	}
	id := uuid.New().String()
	c.Set(RequestIDKey, id)
	return id
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
