package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeFileNotFound, CategoryIO, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeDimensionMismatch, CategoryValidation, SeverityError, false},
		{ErrCodeNotInitialized, CategoryValidation, SeverityError, false},
		{ErrCodeWorkspaceMismatch, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := New(tt.code, "boom", nil)
			assert.Equal(t, tt.wantCategory, e.Category)
			assert.Equal(t, tt.wantSeverity, e.Severity)
			assert.Equal(t, tt.wantRetry, e.Retryable)
		})
	}
}

func TestErrorString(t *testing.T) {
	e := New(ErrCodeFileNotFound, "no such file", nil)
	assert.Equal(t, "[ERR_201_FILE_NOT_FOUND] no such file", e.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk exploded")
	e := Wrap(ErrCodeStoreIO, cause)

	require.NotNil(t, e)
	assert.Equal(t, "disk exploded", e.Message)
	assert.True(t, stderrors.Is(e, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreIO, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeNotInitialized, "store not initialized", nil)
	b := New(ErrCodeNotInitialized, "different message", nil)
	c := New(ErrCodeInternal, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := NotInitialized("vector store")
	wrapped := fmt.Errorf("semantic search: %w", inner)

	assert.True(t, stderrors.Is(wrapped, New(ErrCodeNotInitialized, "", nil)))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	e := New(ErrCodeWorkspaceMismatch, "wrong store", nil).
		WithDetail("want", "alpha_12345678").
		WithDetail("got", "beta_87654321").
		WithSuggestion("check workspace routing")

	assert.Equal(t, "alpha_12345678", e.Details["want"])
	assert.Equal(t, "beta_87654321", e.Details["got"])
	assert.Equal(t, "check workspace routing", e.Suggestion)
}

func TestNotInitializedHelper(t *testing.T) {
	e := NotInitialized("symbol store")

	assert.Equal(t, ErrCodeNotInitialized, e.Code)
	assert.True(t, IsNotInitialized(e))
	assert.False(t, IsNotInitialized(stderrors.New("plain")))
	assert.Contains(t, e.Message, "symbol store")
}

func TestWorkspaceMismatchHelper(t *testing.T) {
	e := WorkspaceMismatch("primary_aaaa1111", "ref_bbbb2222")

	assert.Equal(t, ErrCodeWorkspaceMismatch, e.Code)
	assert.Equal(t, "primary_aaaa1111", e.Details["want"])
	assert.Equal(t, "ref_bbbb2222", e.Details["got"])
}

func TestIsRetryableAndFatal(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "slow", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInternal, "bug", nil)))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(stderrors.New("plain")))

	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "bad db", nil)))
	assert.False(t, IsFatal(New(ErrCodeHashFailed, "eof", nil)))
	assert.False(t, IsFatal(nil))
}

func TestGetCodeAndCategory(t *testing.T) {
	e := New(ErrCodeInvalidQuery, "empty", nil)
	assert.Equal(t, ErrCodeInvalidQuery, GetCode(e))
	assert.Equal(t, CategoryValidation, GetCategory(e))

	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, Category(""), GetCategory(stderrors.New("plain")))
}
