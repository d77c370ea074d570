package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

func success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Response{Success: true, Code: code, Message: message, Data: data, Meta: meta(c)})
}

func fail(c *gin.Context, code int, errCode, message string) {
	c.AbortWithStatusJSON(code, Response{
		Success: false,
		Code:    code,
		Message: message,
		Error:   &ErrorInfo{Code: errCode, Message: message},
		Meta:    meta(c),
	})
}

func meta(c *gin.Context) Meta {
	return Meta{RequestID: c.GetString("request_id"), Timestamp: time.Now().UTC().Format(time.RFC3339)}
}
