package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symerrors "github.com/symdex-dev/symdex/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{
			name: "not initialized",
			err:  symerrors.NotInitialized("workspace /tmp/p"),
			code: ErrCodeIndexNotFound,
		},
		{
			name: "corrupt index",
			err:  symerrors.New(symerrors.ErrCodeCorruptIndex, "bad header", nil),
			code: ErrCodeIndexNotFound,
		},
		{
			name: "file not found",
			err:  symerrors.New(symerrors.ErrCodeFileNotFound, "gone", nil),
			code: ErrCodeFileNotFound,
		},
		{
			name: "embedding failed",
			err:  symerrors.New(symerrors.ErrCodeEmbeddingFailed, "no model", nil),
			code: ErrCodeEmbeddingFailed,
		},
		{
			name: "validation",
			err:  symerrors.ValidationError("bad query", nil),
			code: ErrCodeInvalidParams,
		},
		{
			name: "network",
			err:  symerrors.New(symerrors.ErrCodeNetworkTimeout, "ollama down", nil),
			code: ErrCodeTimeout,
		},
		{
			name: "internal",
			err:  symerrors.InternalError("boom", nil),
			code: ErrCodeInternalError,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			code: ErrCodeTimeout,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			code: ErrCodeTimeout,
		},
		{
			name: "plain error",
			err:  errors.New("anything"),
			code: ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
			assert.NotEmpty(t, mapped.Message)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	mapped := MapError(symerrors.NotInitialized("workspace /tmp/p"))
	require.NotNil(t, mapped)
	assert.Contains(t, mapped.Message, "symdex index")
}

func TestMapError_WrappedSymdexError(t *testing.T) {
	inner := symerrors.ValidationError("limit out of range", nil)
	mapped := MapError(errors.Join(errors.New("tool call"), inner))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("query parameter is required")
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Contains(t, err.Error(), "query parameter is required")
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("grep")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "grep")
}
