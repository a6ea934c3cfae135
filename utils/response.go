package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every 4xx answer.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StoreErrorResponse is the body of a 500 caused by the store. The raw driver
// message is passed through to the client.
type StoreErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// Success writes data as the 200 response body.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, data)
}

// Error returns a client error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, ErrorResponse{Code: code, Message: message})
}

// StoreError logs a failed store operation and answers 500 with the raw error text.
func StoreError(ctx *gin.Context, code int, err error) {
	Sugar.Errorw("store failure",
		"code", code,
		"method", ctx.Request.Method,
		"path", ctx.FullPath(),
		"err", err,
	)
	ctx.JSON(http.StatusInternalServerError, StoreErrorResponse{Code: code, Error: err.Error()})
}
