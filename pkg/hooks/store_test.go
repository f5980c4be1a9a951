package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// render runs fn as one committed component invocation.
func render(t *testing.T, s *Store, fn func()) {
	t.Helper()
	s.BeginRender()
	fn()
	if err := s.EndRender(); err != nil {
		t.Fatalf("EndRender() error = %v", err)
	}
	s.Commit()
}

func TestUseStateInitialValue(t *testing.T) {
	s := NewStore(nil)
	var got string
	render(t, s, func() {
		got, _ = UseState(s, "x")
	})
	if got != "x" {
		t.Errorf("UseState() = %q, want %q", got, "x")
	}
}

func TestUseStateWithoutInitial(t *testing.T) {
	s := NewStore(nil)
	var gotInt int
	var gotAny any
	render(t, s, func() {
		gotInt, _ = UseState[int](s)
		gotAny, _ = UseState[any](s)
	})
	if gotInt != 0 {
		t.Errorf("UseState[int]() = %d, want 0", gotInt)
	}
	if gotAny != nil {
		t.Errorf("UseState[any]() = %v, want nil", gotAny)
	}
}

func TestUseStateFuncEvaluatesOnce(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	init := func() int {
		calls++
		return 42
	}

	for i := 0; i < 3; i++ {
		render(t, s, func() {
			v, _ := UseStateFunc(s, init)
			if v != 42 {
				t.Errorf("render %d: value = %d, want 42", i, v)
			}
		})
	}
	if calls != 1 {
		t.Errorf("init calls = %d, want 1", calls)
	}
}

func TestUseStateAddressedByCallOrder(t *testing.T) {
	s := NewStore(nil)
	var setFirst, setSecond *Setter[string]
	render(t, s, func() {
		_, setFirst = UseState(s, "a")
		_, setSecond = UseState(s, "b")
	})

	setSecond.Set("B")
	setFirst.Set("A")

	var first, second string
	render(t, s, func() {
		first, _ = UseState(s, "a")
		second, _ = UseState(s, "b")
	})
	if first != "A" || second != "B" {
		t.Errorf("state = (%q, %q), want (%q, %q)", first, second, "A", "B")
	}
}

func TestSetterMarksChanged(t *testing.T) {
	s := NewStore(nil)
	var set *Setter[int]
	render(t, s, func() {
		_, set = UseState(s, 1)
	})
	if s.HasChanged() {
		t.Fatal("HasChanged() = true after commit, want false")
	}

	set.Set(1)
	if !s.HasChanged() {
		t.Error("HasChanged() = false after Set with equal value, want true")
	}

	render(t, s, func() {
		UseState(s, 1)
	})
	if s.HasChanged() {
		t.Error("HasChanged() = true after re-render, want false")
	}
}

func TestSetterDuringRenderMarksChanged(t *testing.T) {
	s := NewStore(nil)
	render(t, s, func() {
		_, set := UseState(s, 0)
		set.Set(5)
	})
	if !s.HasChanged() {
		t.Error("HasChanged() = false after in-render Set, want true")
	}

	var got int
	render(t, s, func() {
		got, _ = UseState(s, 0)
	})
	if got != 5 {
		t.Errorf("value = %d, want 5", got)
	}
	if s.HasChanged() {
		t.Error("HasChanged() = true after a render without Set, want false")
	}
}

func TestSetterUpdate(t *testing.T) {
	s := NewStore(nil)
	var set *Setter[int]
	render(t, s, func() {
		_, set = UseState(s, 10)
	})

	set.Update(func(prev int) int { return prev + 1 })
	set.Update(func(prev int) int { return prev * 2 })

	if got := set.Get(); got != 22 {
		t.Errorf("Get() = %d, want 22", got)
	}
}

func TestChangeBeforeCommitStaysPending(t *testing.T) {
	s := NewStore(nil)
	var set *Setter[int]
	render(t, s, func() {
		_, set = UseState(s, 0)
	})

	// set belongs to the previous render, so its call is not one of the
	// render's own writes.
	s.BeginRender()
	UseState(s, 0)
	set.Set(3)
	if err := s.EndRender(); err != nil {
		t.Fatalf("EndRender() error = %v", err)
	}
	s.Commit()

	if !s.HasChanged() {
		t.Error("HasChanged() = false, want true for a change made after the render began")
	}
}

func TestSetFromGoroutineDuringRender(t *testing.T) {
	s := NewStore(nil)
	var set *Setter[string]
	render(t, s, func() {
		_, set = UseState(s, "a")
	})
	set.Set("b")

	// The render hands its own setter to another goroutine while it is
	// blocked, after it already read "b".
	handed := make(chan *Setter[string])
	release := make(chan struct{})
	var seen string
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.BeginRender()
		v, own := UseState(s, "a")
		seen = v
		handed <- own
		<-release
		_ = s.EndRender()
		s.Commit()
	}()

	own := <-handed
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		own.Set("c")
	}()
	wg.Wait()
	close(release)
	<-done

	if seen != "b" {
		t.Fatalf("render read %q, want b", seen)
	}
	if !s.HasChanged() {
		t.Fatal("HasChanged() = false after a concurrent Set, want true")
	}
	var got string
	render(t, s, func() {
		got, _ = UseState(s, "a")
	})
	if got != "c" {
		t.Errorf("next render read %q, want c", got)
	}
	if s.HasChanged() {
		t.Error("HasChanged() = true after re-render, want false")
	}
}

func TestAbortRestoresRenderWrites(t *testing.T) {
	s := NewStore(nil)
	render(t, s, func() {
		n, set := UseState(s, 0)
		set.Set(n + 1)
	})

	render(t, s, func() {
		UseState(s, 0)
	})
	if s.HasChanged() {
		t.Fatal("HasChanged() = true after a render without Set, want false")
	}

	s.BeginRender()
	n, set := UseState(s, 0)
	set.Set(n + 1)
	set.Update(func(prev int) int { return prev + 1 })
	UseState(s, "new cell")
	s.Abort()

	if s.HasChanged() {
		t.Error("HasChanged() = true after Abort, want false")
	}
	var got int
	var cells int
	render(t, s, func() {
		got, _ = UseState(s, 0)
		s.mu.Lock()
		cells = len(s.cells)
		s.mu.Unlock()
	})
	if got != 1 {
		t.Errorf("value after Abort = %d, want 1", got)
	}
	if cells != 1 {
		t.Errorf("cells after Abort = %d, want 1", cells)
	}
}

func TestAbortKeepsOtherWrites(t *testing.T) {
	s := NewStore(nil)
	var old *Setter[int]
	render(t, s, func() {
		_, old = UseState(s, 2)
	})

	s.BeginRender()
	_, own := UseState(s, 0)
	own.Update(func(prev int) int { return prev + 1 })
	old.Update(func(prev int) int { return prev * 10 })
	if got := old.Get(); got != 30 {
		t.Fatalf("Get() during render = %d, want 30", got)
	}
	s.Abort()

	if got := old.Get(); got != 20 {
		t.Errorf("Get() after Abort = %d, want 20", got)
	}
	if !s.HasChanged() {
		t.Error("HasChanged() = false, want true for the write from outside the render")
	}
}

func TestAbortDropsSubscriptions(t *testing.T) {
	s := NewStore(nil)
	render(t, s, func() {
		UseData(s, func(context.Context, string) error { return nil })
	})

	s.BeginRender()
	UseData(s, func(context.Context, string) error { return nil })
	UseData(s, func(context.Context, int) error { return nil })
	s.Abort()

	if got := s.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want the committed 1", got)
	}

	// The aborted render left no hook order behind.
	render(t, s, func() {
		UseData(s, func(context.Context, string) error { return nil })
	})
}

func TestDisposedSetterIsNoop(t *testing.T) {
	s := NewStore(nil)
	var set *Setter[string]
	render(t, s, func() {
		_, set = UseState(s, "x")
	})

	s.Dispose()
	set.Set("y")

	if !s.IsDisposed() {
		t.Error("IsDisposed() = false, want true")
	}
	if s.HasChanged() {
		t.Error("HasChanged() = true on disposed store, want false")
	}
}

func TestHookOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		second func(s *Store)
		want   HookOrderError
	}{
		{
			name: "extra hook",
			second: func(s *Store) {
				UseState(s, 0)
				UseData(s, func(context.Context, int) error { return nil })
				UseState(s, "")
			},
			want: HookOrderError{Index: 2, Got: HookState},
		},
		{
			name: "missing hook",
			second: func(s *Store) {
				UseState(s, 0)
			},
			want: HookOrderError{Index: 1, Expected: HookData},
		},
		{
			name: "swapped hooks",
			second: func(s *Store) {
				UseData(s, func(context.Context, int) error { return nil })
				UseState(s, 0)
			},
			want: HookOrderError{Index: 0, Expected: HookState, Got: HookData},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			render(t, s, func() {
				UseState(s, 0)
				UseData(s, func(context.Context, int) error { return nil })
			})

			s.BeginRender()
			tt.second(s)
			err := s.EndRender()

			var orderErr *HookOrderError
			if !errors.As(err, &orderErr) {
				t.Fatalf("EndRender() error = %v, want *HookOrderError", err)
			}
			if *orderErr != tt.want {
				t.Errorf("error = %+v, want %+v", *orderErr, tt.want)
			}
		})
	}
}

func TestDispatchWithoutSubscriptionsSkipsClock(t *testing.T) {
	var reads atomic.Int32
	s := NewStore(func() time.Time {
		reads.Add(1)
		return time.Now()
	})
	render(t, s, func() {
		UseState(s, 0)
	})

	delivered, err := s.Dispatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
	if n := reads.Load(); n != 0 {
		t.Errorf("clock reads = %d, want 0", n)
	}
	if d := s.TakeUpdateDataTime(); d != 0 {
		t.Errorf("TakeUpdateDataTime() = %v, want 0", d)
	}
}

func TestDispatchMatchesByType(t *testing.T) {
	s := NewStore(nil)
	var ints, strs []any
	var mu sync.Mutex
	render(t, s, func() {
		UseData(s, func(_ context.Context, v int) error {
			mu.Lock()
			defer mu.Unlock()
			ints = append(ints, v)
			return nil
		})
		UseData(s, func(_ context.Context, v string) error {
			mu.Lock()
			defer mu.Unlock()
			strs = append(strs, v)
			return nil
		})
		UseDataFunc(s,
			func(v any) bool {
				n, ok := v.(int)
				return ok && n > 10
			},
			func(_ context.Context, v any) error {
				mu.Lock()
				defer mu.Unlock()
				ints = append(ints, v)
				return nil
			},
		)
	})

	ctx := context.Background()
	if n, _ := s.Dispatch(ctx, 7); n != 1 {
		t.Errorf("Dispatch(7) delivered = %d, want 1", n)
	}
	if n, _ := s.Dispatch(ctx, 11); n != 2 {
		t.Errorf("Dispatch(11) delivered = %d, want 2", n)
	}
	if n, _ := s.Dispatch(ctx, "hello"); n != 1 {
		t.Errorf("Dispatch(hello) delivered = %d, want 1", n)
	}
	if n, _ := s.Dispatch(ctx, 1.5); n != 0 {
		t.Errorf("Dispatch(1.5) delivered = %d, want 0", n)
	}

	if len(ints) != 3 {
		t.Errorf("int deliveries = %v, want 3 values", ints)
	}
	if len(strs) != 1 || strs[0] != "hello" {
		t.Errorf("string deliveries = %v, want [hello]", strs)
	}
}

func TestDispatchWaitsForAllConsumers(t *testing.T) {
	s := NewStore(nil)
	var done atomic.Int32
	boom := errors.New("boom")
	render(t, s, func() {
		UseData(s, func(context.Context, int) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		})
		UseData(s, func(context.Context, int) error {
			done.Add(1)
			return boom
		})
	})

	_, err := s.Dispatch(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want %v", err, boom)
	}
	if n := done.Load(); n != 2 {
		t.Errorf("finished consumers = %d, want 2", n)
	}
}

func TestUpdateDataTimeReadAndReset(t *testing.T) {
	base := time.Unix(0, 0)
	var tick atomic.Int64
	s := NewStore(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	})
	render(t, s, func() {
		UseData(s, func(context.Context, string) error { return nil })
	})

	if _, err := s.Dispatch(context.Background(), "a"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if d := s.TakeUpdateDataTime(); d != time.Millisecond {
		t.Errorf("first TakeUpdateDataTime() = %v, want 1ms", d)
	}
	if d := s.TakeUpdateDataTime(); d != 0 {
		t.Errorf("second TakeUpdateDataTime() = %v, want 0", d)
	}
}

func TestSubscriptionsVisibleOnlyAfterCommit(t *testing.T) {
	s := NewStore(nil)
	s.BeginRender()
	UseData(s, func(context.Context, int) error { return nil })
	_ = s.EndRender()

	if n := s.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() before commit = %d, want 0", n)
	}
	s.Commit()
	if n := s.SubscriptionCount(); n != 1 {
		t.Errorf("SubscriptionCount() after commit = %d, want 1", n)
	}

	// An abandoned render keeps the committed subscriptions.
	s.BeginRender()
	_ = s.EndRender()
	if n := s.SubscriptionCount(); n != 1 {
		t.Errorf("SubscriptionCount() after abandoned render = %d, want 1", n)
	}
}

func TestHookTypeString(t *testing.T) {
	tests := []struct {
		ht   HookType
		want string
	}{
		{HookState, "State"},
		{HookData, "Data"},
		{HookType(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.ht.String(); got != tt.want {
			t.Errorf("HookType(%d).String() = %q, want %q", tt.ht, got, tt.want)
		}
	}
}
