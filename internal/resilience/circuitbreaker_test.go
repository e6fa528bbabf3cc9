package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("store", cfg)
	cb.now = clock.Now
	return cb, clock
}

func testConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("CircuitState.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())

	for i := 0; i < 2; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}
	// A success resets the streak.
	cb.Allow()
	cb.Record(nil)
	for i := 0; i < 2; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}

	cb.Allow()
	cb.Record(errBoom)
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject calls")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(testConfig())
	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Fatal("breaker should allow a trial after the open timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("only one trial should be in flight")
	}

	cb.Record(nil)
	if !cb.Allow() {
		t.Fatal("a finished trial should free its slot")
	}
	cb.Record(nil)

	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(testConfig())
	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}

	clock.Advance(2 * time.Second)
	cb.Allow()
	cb.Record(errBoom)

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("reopened breaker should wait a full timeout")
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want errBoom", err)
		}
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("open breaker should not run fn")
	}
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cb, _ := newTestBreaker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())
	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}
	cb.Reset()
	if cb.State() != StateClosed || !cb.Allow() {
		t.Fatal("Reset() should close the breaker")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())

	changes := make(chan CircuitState, 4)
	cb.OnStateChange(func(name string, from, to CircuitState) {
		if name != "store" {
			t.Errorf("name = %q, want store", name)
		}
		changes <- to
	})

	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.Record(errBoom)
	}

	select {
	case to := <-changes:
		if to != StateOpen {
			t.Fatalf("transition to %v, want open", to)
		}
	case <-time.After(time.Second):
		t.Fatal("OnStateChange callback not called")
	}
}

func TestNewCircuitBreaker_NormalizesConfig(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{})
	cb.Allow()
	cb.Record(errBoom)
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open with a zero threshold", cb.State())
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker("store", DefaultCircuitBreakerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(context.Context) error {
				if i%2 == 0 {
					return errBoom
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	_ = cb.State()
}
