package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	anyworld "github.com/anythingworld/anything-world-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStatusFunc_SuccessFirstTry(t *testing.T) {
	calls := 0
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		return &anyworld.Model{ID: "m1", Stage: "rigging"}, nil
	}

	check := NewStatusFunc(inner, 3, time.Millisecond, discardLogger())
	model, err := check(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.ID != "m1" || calls != 1 {
		t.Errorf("model = %+v, calls = %d", model, calls)
	}
}

func TestNewStatusFunc_RetriesServerError(t *testing.T) {
	calls := 0
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		if calls < 3 {
			return nil, &anyworld.TransportError{StatusCode: 503}
		}
		return &anyworld.Model{ID: "m1"}, nil
	}

	check := NewStatusFunc(inner, 5, time.Millisecond, discardLogger())
	if _, err := check(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestNewStatusFunc_RetriesNetworkError(t *testing.T) {
	calls := 0
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		if calls == 1 {
			return nil, &anyworld.TransportError{Err: errors.New("connection refused")}
		}
		return &anyworld.Model{ID: "m1"}, nil
	}

	check := NewStatusFunc(inner, 3, time.Millisecond, discardLogger())
	if _, err := check(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestNewStatusFunc_NoRetryOnClientError(t *testing.T) {
	calls := 0
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		return nil, &anyworld.TransportError{StatusCode: 404, Code: "Not Found"}
	}

	check := NewStatusFunc(inner, 3, time.Millisecond, discardLogger())
	_, err := check(context.Background(), "m1")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx is not retryable)", calls)
	}
}

func TestNewStatusFunc_ExhaustsRetries(t *testing.T) {
	calls := 0
	terr := &anyworld.TransportError{StatusCode: 500}
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		return nil, terr
	}

	check := NewStatusFunc(inner, 2, time.Millisecond, discardLogger())
	_, err := check(context.Background(), "m1")

	var gotErr *anyworld.TransportError
	if !errors.As(err, &gotErr) {
		t.Fatalf("error = %v, want the last transport error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (first try plus 2 retries)", calls)
	}
}

func TestNewStatusFunc_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	inner := func(_ context.Context, _ string) (*anyworld.Model, error) {
		calls++
		cancel()
		return nil, &anyworld.TransportError{StatusCode: 500}
	}

	check := NewStatusFunc(inner, 3, time.Minute, discardLogger())
	_, err := check(ctx, "m1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry after cancellation)", calls)
	}
}

func TestBackoffDelay_RetryAfterPrecedence(t *testing.T) {
	err := &anyworld.TransportError{StatusCode: 429, RetryAfter: 9 * time.Second}
	if got := backoffDelay(time.Second, 1, err); got != 9*time.Second {
		t.Errorf("delay = %v, want the server-provided 9s", got)
	}
}

func TestBackoffDelay_ExponentialGrowth(t *testing.T) {
	base := time.Second
	err := &anyworld.TransportError{StatusCode: 500}
	for attempt, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		got := backoffDelay(base, attempt, err)
		// Jitter keeps the delay within ±30% of the exponential value.
		lo := time.Duration(float64(want) * 0.7)
		hi := time.Duration(float64(want) * 1.3)
		if got < lo || got > hi {
			t.Errorf("attempt %d delay = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &anyworld.TransportError{StatusCode: 429}, true},
		{"server error", &anyworld.TransportError{StatusCode: 502}, true},
		{"network failure", &anyworld.TransportError{Err: errors.New("timeout")}, true},
		{"client error", &anyworld.TransportError{StatusCode: 400}, false},
		{"cancelled", context.Canceled, false},
		{"pipeline failure", &anyworld.AnimationFailedError{ModelID: "m1", Stage: "rigging_failed"}, false},
		{"poll timeout", &anyworld.PollTimeoutError{ModelID: "m1"}, false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Errorf("%s: isRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
