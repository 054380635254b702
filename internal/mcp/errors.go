// Package mcp exposes the curia index to AI clients over the Model Context
// Protocol: retrieval, question answering and index status as tools, and
// the extracted text of every indexed document as a resource.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cerrors "github.com/curia-rag/curia/internal/errors"
)

// Custom MCP error codes for curia.
const (
	// ErrCodeIndexNotFound indicates the index is missing or unreadable.
	ErrCodeIndexNotFound = -32001

	// ErrCodeProviderFailed indicates the embedding or language model failed.
	ErrCodeProviderFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a document no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrResourceNotFound indicates the requested resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	if ce, ok := cerrors.As(err); ok {
		return mapCuriaError(ce)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapCuriaError(ce *cerrors.CuriaError) *MCPError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s (%s)", ce.Message, ce.Suggestion)
	}

	switch ce.Code {
	case cerrors.ErrCodeQueryEmpty, cerrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case cerrors.ErrCodeCorruptIndex, cerrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case cerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: message}
	case cerrors.ErrCodeProviderTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case cerrors.ErrCodeDependencyMissing:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}

	switch ce.Category {
	case cerrors.CategoryProvider:
		return &MCPError{Code: ErrCodeProviderFailed, Message: message}
	case cerrors.CategoryContent:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
