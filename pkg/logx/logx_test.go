package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")

	err := Wrap(base, "error opening registry")
	assert.EqualError(t, err, "error opening registry: connection refused")
	assert.ErrorIs(t, err, base)

	assert.NoError(t, Wrap(nil, "ignored"))
}

func TestErrorf(t *testing.T) {
	base := errors.New("disk full")

	err := Errorf("error ensuring schema: %w", base)
	assert.EqualError(t, err, "error ensuring schema: disk full")
	assert.ErrorIs(t, err, base)
}

func TestSetDebugDomains(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, []string{"store"})
	assert.True(t, debugEnabledFor("store"))
	assert.False(t, debugEnabledFor("agent"))

	SetDebug(true, nil)
	assert.True(t, debugEnabledFor("agent"))

	SetDebug(false, nil)
	assert.False(t, debugEnabledFor("store"))
}
