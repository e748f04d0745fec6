package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key the request logger stores the request ID under.
const RequestIDKey = "request_id"

// Body is the JSON envelope of every REST response.
type Body struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func write(c *gin.Context, status int, body Body) {
	body.RequestID = c.GetString(RequestIDKey)
	c.JSON(status, body)
}

// OK sends 200 with data.
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Body{Success: true, Data: data})
}

// Created sends 201 with data.
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends a failed envelope with any status.
func Error(c *gin.Context, status int, msg string) {
	write(c, status, Body{Error: msg})
}

// Abort sends a failed envelope and stops the handler chain. Middleware uses it to reject requests.
func Abort(c *gin.Context, status int, msg string) {
	Error(c, status, msg)
	c.Abort()
}

func BadRequest(c *gin.Context, msg string)   { Error(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { Error(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)    { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)     { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)     { Error(c, http.StatusConflict, msg) }
func BadGateway(c *gin.Context, msg string)   { Error(c, http.StatusBadGateway, msg) }
func Internal(c *gin.Context, msg string)     { Error(c, http.StatusInternalServerError, msg) }

// ServiceUnavailable sends 503 when a backing store is down.
func ServiceUnavailable(c *gin.Context, msg string) {
	Error(c, http.StatusServiceUnavailable, msg)
}
