// Package mcp implements the Model Context Protocol server for onboardqa.
package mcp

import (
	"context"
	"errors"
	"fmt"

	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
)

// Custom MCP error codes for onboardqa.
const (
	// ErrCodeCorpusNotFound indicates no policy corpus has been ingested.
	ErrCodeCorpusNotFound = -32001

	// ErrCodeServiceUnavailable indicates the embedder or text generator
	// backend could not be reached.
	ErrCodeServiceUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

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
// It maps known error types to appropriate MCP error codes and messages.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var qaErr *qaerrors.QAError
	if errors.As(err, &qaErr) {
		return mapQAError(qaErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Resource not found.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

// mapQAError converts a QAError to an MCPError.
func mapQAError(qe *qaerrors.QAError) *MCPError {
	// Build message with suggestion if available
	message := qe.Message
	if qe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", qe.Message, qe.Suggestion)
	}

	switch qe.Category {
	case qaerrors.CategoryValidation:
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: message,
		}
	case qaerrors.CategoryStorage:
		switch qe.Code {
		case qaerrors.ErrCodeCorpusNotFound, qaerrors.ErrCodeCorruptIndex:
			return &MCPError{
				Code:    ErrCodeCorpusNotFound,
				Message: message,
			}
		default:
			return &MCPError{
				Code:    ErrCodeInternalError,
				Message: message,
			}
		}
	case qaerrors.CategoryService:
		if qe.Code == qaerrors.ErrCodeServiceTimeout {
			return &MCPError{
				Code:    ErrCodeTimeout,
				Message: message,
			}
		}
		return &MCPError{
			Code:    ErrCodeServiceUnavailable,
			Message: message,
		}
	default: // CategoryConfig, CategoryInternal, and unknown
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	}
}
