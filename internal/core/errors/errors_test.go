package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapMatchesSentinel(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("query: %w", Wrap(cause, ErrManagerUnreachable, ""))

	if !stderrors.Is(err, ErrManagerUnreachable) {
		t.Fatal("wrapped error should match ErrManagerUnreachable")
	}
	if stderrors.Is(err, ErrNotFound) {
		t.Fatal("wrapped error must not match ErrNotFound")
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("cause should stay reachable")
	}
}

func TestWrapDoesNotMutateSentinel(t *testing.T) {
	e := New(ErrInvalidState, "files listed before completion")
	e.WithDetails(map[string]any{"hash": "abc"})
	if len(ErrInvalidState.Details) != 0 {
		t.Errorf("sentinel details mutated: %v", ErrInvalidState.Details)
	}
	if e.Message != "files listed before completion" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want bool
	}{
		{"unreachable", ErrManagerUnreachable, true},
		{"not found", ErrNotFound, true},
		{"catalog not found", ErrCatalogNotFound, false},
		{"invalid state", ErrInvalidState, false},
		{"transcode", ErrTranscodeFailed, false},
		{"external", ErrExternalService, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", stderrors.New("boom"), "boom"},
		{"sentinel", ErrCancelled, "delivery was cancelled"},
		{
			"with cause",
			Wrap(stderrors.New("status=403"), ErrManagerUnreachable, "login"),
			"download manager is unreachable: status=403",
		},
		{
			"wrapped twice",
			fmt.Errorf("monitor: %w", New(ErrRegistrationTimeout, "")),
			"download manager did not register the download in time",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
