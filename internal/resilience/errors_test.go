package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()

	base := errors.New("reservation unavailable")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("unknown product"), false},
		{"explicit", NewTransientError(base, 0), true},
		{"wrapped", fmt.Errorf("validate: %w", NewTransientError(base, 0)), true},
		{"network timeout", timeoutErr{}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", fmt.Errorf("x: %w", context.Canceled), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	t.Parallel()
	base := errors.New("busy")
	te := NewTransientError(base, 7)
	assert.ErrorIs(t, te, base)
	assert.Equal(t, "busy", te.Error())
	assert.Equal(t, 7, te.Code)
}
