package hooks

import (
	"sync"
	"sync/atomic"
	"time"
)

// HookType identifies the type of hook call for order validation.
type HookType uint8

const (
	HookState HookType = iota + 1
	HookData
)

// String returns a human-readable name for the hook type.
func (h HookType) String() string {
	switch h {
	case HookState:
		return "State"
	case HookData:
		return "Data"
	default:
		return "Unknown"
	}
}

// Clock returns the current time. A Store reads its clock only while
// dispatching data to at least one subscription.
type Clock func() time.Time

// storeIDCounter is the source of unique store IDs.
var storeIDCounter atomic.Uint64

// cell is one state slot.
type cell struct {
	value any
}

// Store is the hook storage of one component Render Node.
type Store struct {
	id    uint64
	clock Clock

	mu sync.Mutex

	// State cells in call order; cellIdx is the next slot during a render.
	cells   []*cell
	cellIdx int

	// subs are visible to Dispatch. draft collects the subscriptions of the
	// render in progress and replaces subs on Commit.
	subs  []subscription
	draft []subscription

	// Hook order recorded by the first committed render, and the order seen
	// by the render in progress.
	hookOrder   []HookType
	orderLocked bool
	renderOrder []HookType
	orderErr    error

	// renderSeq numbers renders; setters handed out by a render carry it.
	// While rendering, writes through the current render's setters save the
	// previous value in undo and count in ownWrites, so Abort can take them
	// back.
	rendering bool
	renderSeq uint64
	undo      map[*cell]any
	ownWrites uint64
	baseCells int

	// version counts setter calls. observed is the version seen when the
	// current render began; committed is the version reflected by the last
	// committed render. A call made while a render runs is newer than
	// observed, so it stays pending after the Commit.
	version   uint64
	observed  uint64
	committed uint64

	renders    int
	updateTime time.Duration
	disposed   bool
}

// NewStore creates an empty Store. A nil clock defaults to time.Now.
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		id:    storeIDCounter.Add(1),
		clock: clock,
	}
}

// ID returns the unique identifier for this Store.
func (s *Store) ID() uint64 {
	return s.id
}

// BeginRender is called at the beginning of a component invocation.
// It resets the slot index so hooks line up by call order.
func (s *Store) BeginRender() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rendering = true
	s.renderSeq++
	s.undo = nil
	s.ownWrites = 0
	s.baseCells = len(s.cells)
	s.cellIdx = 0
	s.draft = nil
	s.renderOrder = nil
	s.orderErr = nil
	s.observed = s.version
}

// EndRender is called at the end of a component invocation.
// It reports a *HookOrderError when the hooks called differ from the
// order recorded by the first committed render.
func (s *Store) EndRender() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rendering = false
	if s.orderErr == nil && s.orderLocked && len(s.renderOrder) < len(s.hookOrder) {
		n := len(s.renderOrder)
		s.orderErr = &HookOrderError{Index: n, Expected: s.hookOrder[n]}
	}
	return s.orderErr
}

// Commit makes the last render visible: its subscriptions replace the
// previous ones and the changes it observed are no longer pending.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.subs = s.draft
	s.draft = nil
	s.undo = nil
	if !s.orderLocked {
		s.hookOrder = s.renderOrder
		s.orderLocked = true
	}
	s.committed = s.observed
	s.renders++
}

// Abort discards a render that will not be committed. Writes made through
// the setters this render returned are undone, cells it created are
// dropped and its subscriptions are discarded. Writes through setters of
// earlier renders are kept and stay pending.
func (s *Store) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rendering = false
	for c, v := range s.undo {
		c.value = v
	}
	s.undo = nil
	s.version -= s.ownWrites
	s.ownWrites = 0
	if s.baseCells < len(s.cells) {
		s.cells = s.cells[:s.baseCells]
	}
	s.draft = nil
	s.renderOrder = nil
	s.orderErr = nil
}

// HasChanged reports whether a setter was called since the last committed
// render began.
func (s *Store) HasChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.committed
}

// Renders returns the number of committed renders.
func (s *Store) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// TakeUpdateDataTime returns the time spent dispatching data since the last
// call and resets it.
func (s *Store) TakeUpdateDataTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.updateTime
	s.updateTime = 0
	return d
}

// Dispose drops all state and subscriptions. Setters and dispatches on a
// disposed Store are no-ops.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.cells = nil
	s.subs = nil
	s.draft = nil
}

// IsDisposed returns true if this Store has been disposed.
func (s *Store) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// trackHook records a hook call for order validation. Caller holds s.mu.
func (s *Store) trackHook(ht HookType) {
	s.renderOrder = append(s.renderOrder, ht)
	if !s.orderLocked || s.orderErr != nil {
		return
	}
	i := len(s.renderOrder) - 1
	if i >= len(s.hookOrder) {
		s.orderErr = &HookOrderError{Index: i, Got: ht}
		return
	}
	if s.hookOrder[i] != ht {
		s.orderErr = &HookOrderError{Index: i, Expected: s.hookOrder[i], Got: ht}
	}
}
