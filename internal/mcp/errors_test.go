package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
)

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad input"}
	assert.Equal(t, "MCP error -32602: bad input", err.Error())
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_ContextErrors(t *testing.T) {
	mapped := MapError(context.DeadlineExceeded)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)

	mapped = MapError(context.Canceled)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapError_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"invalid params", ErrInvalidParams, ErrCodeInvalidParams},
		{"resource not found", ErrResourceNotFound, ErrCodeMethodNotFound},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
		})
	}
}

func TestMapError_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("while dispatching: %w", ErrToolNotFound)
	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeMethodNotFound, mapped.Code)
}

func TestMapError_QAValidation(t *testing.T) {
	err := qaerrors.ValidationError("query is empty", nil)
	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
	assert.Contains(t, mapped.Message, "query is empty")
}

func TestMapError_QACorpusNotFound(t *testing.T) {
	err := qaerrors.CorpusNotFound("./policies")
	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeCorpusNotFound, mapped.Code)
	// Suggestion is appended to the message
	assert.Contains(t, mapped.Message, "onboardqa ingest")
}

func TestMapError_QAServiceErrors(t *testing.T) {
	mapped := MapError(qaerrors.EmbedderUnavailable("ollama unreachable", nil))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeServiceUnavailable, mapped.Code)

	mapped = MapError(qaerrors.New(qaerrors.ErrCodeServiceTimeout, "generation timed out", nil))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapError_QACacheBackendIsInternal(t *testing.T) {
	mapped := MapError(qaerrors.CacheError("disk full", nil))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInternalError, mapped.Code)
}

func TestMapError_WrappedQAError(t *testing.T) {
	inner := qaerrors.ValidationError("too long", nil)
	err := fmt.Errorf("request rejected: %w", inner)
	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("limit must be positive")
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, "limit must be positive", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("reindex")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "reindex")
}

func TestNewResourceNotFoundError(t *testing.T) {
	err := NewResourceNotFoundError("policy://missing.md")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "policy://missing.md")
}
