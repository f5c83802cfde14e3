package pricingerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	store := TransientStore("redis unavailable", errors.New("dial tcp timeout"))
	assert.True(t, IsRetryable(store))

	cfg := Configuration("missing DATABASE_URL", nil)
	assert.False(t, IsRetryable(cfg))

	wrapped := fmt.Errorf("wrapping: %w", store)
	assert.True(t, IsRetryable(wrapped)) // walks through fmt's Unwrap to the underlying *Error
}

func TestKindOf(t *testing.T) {
	err := ModelLifecycle("promotion failed", nil)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindModelLifecycle, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithContextChaining(t *testing.T) {
	err := Data("bad row", nil).WithContext("property_id", "p1").WithContext("row", 42)
	assert.Equal(t, "p1", err.Context["property_id"])
	assert.Equal(t, 42, err.Context["row"])
}
