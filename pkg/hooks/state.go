package hooks

// Setter updates one state cell. It stays valid across renders for as long
// as the owning Store is alive.
type Setter[T any] struct {
	store *Store
	cell  *cell
	gen   uint64 // render that created the setter
}

// UseState returns the value of the next state cell and its setter.
// The cell is created on first use with initial[0], or the zero value of T
// when no initial value is given.
//
// Example:
//
//	name, setName := hooks.UseState(s, "x")
func UseState[T any](s *Store, initial ...T) (T, *Setter[T]) {
	return useState(s, func() T {
		if len(initial) > 0 {
			return initial[0]
		}
		var zero T
		return zero
	})
}

// UseStateFunc is like UseState but computes the initial value lazily.
// init only runs when the cell is created.
func UseStateFunc[T any](s *Store, init func() T) (T, *Setter[T]) {
	return useState(s, init)
}

func useState[T any](s *Store, init func() T) (T, *Setter[T]) {
	s.mu.Lock()
	s.trackHook(HookState)
	idx := s.cellIdx
	s.cellIdx++
	var c *cell
	if idx < len(s.cells) {
		c = s.cells[idx]
	}
	s.mu.Unlock()

	if c == nil {
		// init runs unlocked; it is user code.
		fresh := &cell{value: init()}
		s.mu.Lock()
		if idx < len(s.cells) {
			c = s.cells[idx]
		} else {
			s.cells = append(s.cells, fresh)
			c = fresh
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	value := c.value
	gen := s.renderSeq
	s.mu.Unlock()

	setter := &Setter[T]{store: s, cell: c, gen: gen}
	if value == nil {
		var zero T
		return zero, setter
	}
	v, ok := value.(T)
	if !ok {
		s.mu.Lock()
		if s.orderErr == nil {
			s.orderErr = &HookOrderError{Index: idx, Expected: HookState, Got: HookState, TypeMismatch: true}
		}
		s.mu.Unlock()
	}
	return v, setter
}

// Set replaces the cell value. Every call marks the Store changed, even
// when the value is equal to the previous one or the call is made by a
// render of the Store.
func (st *Setter[T]) Set(v T) {
	st.store.set(st.gen, st.cell, func(any) any { return v })
}

// Update replaces the cell value with fn(previous). fn runs while the Store
// is locked and must not call back into it. When the cell was written by a
// render still in progress, fn is also applied to the value kept for Abort.
func (st *Setter[T]) Update(fn func(prev T) T) {
	st.store.set(st.gen, st.cell, func(prev any) any {
		p, _ := prev.(T)
		return fn(p)
	})
}

// Get returns the current cell value.
func (st *Setter[T]) Get() T {
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	v, _ := st.cell.value.(T)
	return v
}

func (s *Store) set(gen uint64, c *cell, fn func(prev any) any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	if s.rendering && gen == s.renderSeq {
		if _, saved := s.undo[c]; !saved {
			if s.undo == nil {
				s.undo = make(map[*cell]any)
			}
			s.undo[c] = c.value
		}
		s.ownWrites++
	} else if prev, saved := s.undo[c]; saved {
		s.undo[c] = fn(prev)
	}
	c.value = fn(c.value)
	s.version++
}
