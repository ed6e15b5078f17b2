package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"timeout", ErrTimeout, true},
		{"channel closed", ErrChannelClosed, true},
		{"hardware fault", ErrHardwareFault, true},
		{"remote command", ErrRemoteCommand, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped connection lost", fmt.Errorf("proxy: %w", ErrConnectionLost), true},
		{"unknown component", ErrUnknownComponent, false},
		{"type mismatch", ErrTypeMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrUnknownComponent))
	assert.True(t, IsInvalid(ErrUnknownField))
	assert.True(t, IsInvalid(ErrTypeMismatch))
	assert.True(t, IsInvalid(ErrProtocol))
	assert.True(t, IsInvalid(ErrInvalidConfig))
	assert.False(t, IsInvalid(ErrConnectionLost))
	assert.False(t, IsInvalid(nil))
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := WrapTransient(ErrTimeout, "Proxy", "Write", "await response")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "Proxy.Write")

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "Proxy", ce.Component)
	assert.Equal(t, "Write", ce.Operation)
}

func TestWrapInvalidClassWinsOverSentinel(t *testing.T) {
	// An explicit classification overrides sentinel-based inference.
	err := WrapInvalid(ErrConnectionLost, "Server", "Serve", "frame decode")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "a", "b", "c"))
	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrUnknownField))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionLost))
	assert.Equal(t, ErrorTransient, Classify(errors.New("something else")))
	assert.Equal(t, ErrorFatal, Classify(WrapFatal(errors.New("boom"), "x", "y", "z")))
}
