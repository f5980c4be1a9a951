package hooks

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// subscription pairs a runtime type check with a consumer.
type subscription struct {
	match   func(any) bool
	deliver func(context.Context, any) error
}

// UseData subscribes consumer to pumped values of type T.
// The consumer may block; Dispatch waits for it.
//
// Example:
//
//	hooks.UseData(s, func(ctx context.Context, files []string) error {
//	    setFiles.Set(files)
//	    return nil
//	})
func UseData[T any](s *Store, consumer func(ctx context.Context, value T) error) {
	UseDataFunc(s,
		func(v any) bool {
			_, ok := v.(T)
			return ok
		},
		func(ctx context.Context, v any) error {
			return consumer(ctx, v.(T))
		},
	)
}

// UseDataFunc subscribes consumer to pumped values accepted by match.
func UseDataFunc(s *Store, match func(any) bool, consumer func(ctx context.Context, value any) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackHook(HookData)
	s.draft = append(s.draft, subscription{match: match, deliver: consumer})
}

// SubscriptionCount returns the number of committed subscriptions.
func (s *Store) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dispatch delivers value to every committed subscription that accepts it.
// Matching consumers run concurrently; Dispatch returns after all of them
// finished, with the first error any of them returned.
//
// A Store without subscriptions returns immediately without reading its
// clock. Otherwise the elapsed time is added to the update time reported by
// TakeUpdateDataTime.
func (s *Store) Dispatch(ctx context.Context, value any) (delivered int, err error) {
	s.mu.Lock()
	if s.disposed || len(s.subs) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	clock := s.clock
	s.mu.Unlock()

	start := clock()

	var g errgroup.Group
	for _, sub := range subs {
		if !sub.match(value) {
			continue
		}
		delivered++
		g.Go(func() error {
			return sub.deliver(ctx, value)
		})
	}
	err = g.Wait()

	elapsed := clock().Sub(start)
	s.mu.Lock()
	s.updateTime += elapsed
	s.mu.Unlock()

	return delivered, err
}
