package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errBrokerDown = errors.New("broker down")

func flapClassifier(err error) ErrorClassification {
	return ErrorClassification{
		Retryable:     errors.Is(err, errBrokerDown),
		RecordFailure: true,
	}
}

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesUntilPublishSucceeds(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errBrokerDown
		}
		return nil
	}, flapClassifier)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
		attempts++
		return errBrokerDown
	}, flapClassifier)
	if !errors.Is(err, errBrokerDown) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	errBadPayload := errors.New("bad payload")
	err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
		attempts++
		return errBadPayload
	}, flapClassifier)
	if !errors.Is(err, errBadPayload) {
		t.Fatalf("expected payload error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsWhenContextIsCancelled(t *testing.T) {
	exec := NewExecutor(fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Execute(ctx, "notify.publish", func(context.Context) error {
		attempts++
		cancel()
		return errBrokerDown
	}, flapClassifier)
	if !errors.Is(err, errBrokerDown) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancellation during backoff must stop retries, got %d attempts", attempts)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFailures(t *testing.T) {
	cfg := PublishConfig()
	cfg.RetryMaxAttempts = 1
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = time.Millisecond
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = 50 * time.Millisecond
	exec := NewExecutor(cfg)

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
			return errBrokerDown
		}, classifier)
		if !errors.Is(err, errBrokerDown) {
			t.Fatalf("expected broker error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
		t.Fatalf("open circuit must not invoke the operation")
		return nil
	}, classifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open-circuit error, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected gobreaker open state, got %v", err)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	cfg := PublishConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	exec := NewExecutor(cfg)

	errCancelled := errors.New("caller went away")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}

	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
			return errCancelled
		}, classifier)
		if !errors.Is(err, errCancelled) {
			t.Fatalf("expected pass-through error on iteration %d, got %v", i, err)
		}
	}

	called := false
	err := exec.Execute(context.Background(), "notify.publish", func(context.Context) error {
		called = true
		return nil
	}, classifier)
	if err != nil || !called {
		t.Fatalf("circuit must stay closed for unrecorded failures: err=%v called=%v", err, called)
	}
}
