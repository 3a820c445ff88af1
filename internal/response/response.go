package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope of every REST reply.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody carries the machine-readable code and optional per-field messages.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination describes one page of a list.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination builds pagination info for a page of totalItems.
func NewPagination(page, perPage, totalItems int) *Pagination {
	pages := 0
	if perPage > 0 {
		pages = (totalItems + perPage - 1) / perPage
	}
	return &Pagination{Page: page, PerPage: perPage, TotalItems: totalItems, TotalPages: pages}
}

// Metadata ties a reply to its request.
type Metadata struct {
	RequestID  string `json:"request_id"`
	Timestamp  string `json:"timestamp"`
	DurationMs int64  `json:"duration_ms"`
}

// Success replies with data.
func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, Response{Data: data})
}

// SuccessWithPagination replies with one page of a list.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	write(c, statusCode, Response{Data: data, Pagination: pagination})
}

// Fail replies with an error code and its default message.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, Response{Error: &ErrorBody{Code: code, Message: GetMessage(code)}})
}

// FailWithFields replies with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	write(c, statusCode, Response{Error: &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}})
}

// AbortFail stops the middleware chain with an error reply.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	Fail(c, statusCode, code)
	c.Abort()
}

func write(c *gin.Context, statusCode int, body Response) {
	body.Metadata = buildMetadata(c)
	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return
	}
	c.JSON(statusCode, body)
}

func buildMetadata(c *gin.Context) Metadata {
	now := time.Now()
	md := Metadata{
		RequestID: c.GetString(ContextKeyRequestID),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if md.RequestID == "" {
		md.RequestID = uuid.NewString()
	}
	if started, ok := c.Get(ContextKeyStartedAt); ok {
		if t, ok := started.(time.Time); ok {
			md.DurationMs = now.Sub(t).Milliseconds()
		}
	}
	return md
}
