package rerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRicochetError_IsMatchesByCode(t *testing.T) {
	err := StoreIOError(fmt.Errorf("disk full"), "insert injection")
	assert.True(t, errors.Is(err, ErrStoreIO))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestRicochetError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NetworkError(cause, "post callback")
	assert.ErrorIs(t, err, cause)
}

func TestAs_ExtractsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UsageError("missing --url"))
	re, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeUsage, re.Code)
}

func TestIsUsage(t *testing.T) {
	assert.True(t, IsUsage(UsageError("bad flag")))
	assert.False(t, IsUsage(StoreIOError(nil, "x")))
}

func TestDuplicateTokenError_MessageContainsToken(t *testing.T) {
	err := DuplicateTokenError("aaaaaaaaaaaaaaaa")
	assert.Contains(t, err.Error(), "aaaaaaaaaaaaaaaa")
}
