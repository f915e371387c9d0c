package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name             string
		errorClass       ErrorClass
		expectedInitial  time.Duration
		expectedMax      time.Duration
		expectedAttempts int
	}{
		{"server error config", ErrorClassServer, 1 * time.Second, 10 * time.Second, 3},
		{"rate limit config", ErrorClassRateLimit, 5 * time.Second, 60 * time.Second, 3},
		{"network error config", ErrorClassNetwork, 2 * time.Second, 30 * time.Second, 3},
		{"unknown error class uses default", "", 1 * time.Second, 30 * time.Second, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)
			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != tt.expectedAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedAttempts)
			}
		})
	}
}

func TestBackoffFor(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffFor(config, tt.attempt); got != tt.want {
			t.Errorf("backoffFor(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		}
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &APIError{StatusCode: 502, ErrorClass: ErrorClassServer}
	clientErr := &APIError{StatusCode: 404, ErrorClass: ErrorClassClient}

	tests := []struct {
		name          string
		failures      []error
		wantCalls     int
		wantErr       error
		wantExhausted bool
	}{
		{
			name:      "success on first attempt",
			wantCalls: 1,
		},
		{
			name:      "success after server errors",
			failures:  []error{serverErr, serverErr},
			wantCalls: 3,
		},
		{
			name:      "client error is not retried",
			failures:  []error{clientErr},
			wantCalls: 1,
			wantErr:   clientErr,
		},
		{
			name:          "server errors exhaust attempts",
			failures:      []error{serverErr, serverErr, serverErr, serverErr},
			wantCalls:     3,
			wantErr:       serverErr,
			wantExhausted: true,
		},
		{
			name:      "unclassified error is returned as is",
			failures:  []error{errors.New("boom")},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), zerolog.Nop(), fastPolicy(3), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantExhausted != errors.Is(err, ErrRetryExhausted) {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", !tt.wantExhausted, tt.wantExhausted)
			}
			if len(tt.failures) < tt.wantCalls && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       5,
			InitialBackoff:    time.Hour,
			MaxBackoff:        time.Hour,
			BackoffMultiplier: 2.0,
		}
	}

	calls := 0
	err := retryWithBackoff(ctx, zerolog.Nop(), policy, func() error {
		calls++
		cancel()
		return &APIError{StatusCode: 503, ErrorClass: ErrorClassServer}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("error = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
