package tinkerdeck

import "sync"

// Location is the part of the host that owns the address fragment.
type Location interface {
	// Fragment returns the current fragment including its leading '#', or an
	// empty string.
	Fragment() string
	// SetFragment replaces the fragment. Hosts fire change listeners only
	// when the value actually changes.
	SetFragment(fragment string)
	// OnFragmentChange subscribes to external fragment changes.
	OnFragmentChange(fn func(fragment string)) (cancel func())
}

// KeySource delivers key presses.
type KeySource interface {
	OnKeyDown(fn func(*KeyEvent)) (cancel func())
}

// Host is the environment a Deck is attached to.
type Host interface {
	Location
	KeySource
}

// KeyEvent is a key press delivered by the host.
type KeyEvent struct {
	// Key is the DOM key value ("ArrowLeft", " ", ...).
	Key string
	// KeyCode is the legacy numeric key code, used when Key is empty.
	KeyCode int

	Shift, Ctrl, Alt, Meta bool

	defaultPrevented bool
}

// HasModifier reports whether any modifier key was held.
func (e *KeyEvent) HasModifier() bool {
	return e.Shift || e.Ctrl || e.Alt || e.Meta
}

// PreventDefault marks the event as consumed by the deck.
func (e *KeyEvent) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *KeyEvent) DefaultPrevented() bool {
	return e.defaultPrevented
}

// MemoryHost is an in-process Host. Fragment changes made through
// SetFragment are queued like a browser's asynchronous hashchange event and
// delivered by Flush.
type MemoryHost struct {
	mu       sync.Mutex
	fragment string
	pending  []string
	nextID   int
	onChange map[int]func(string)
	onKey    map[int]func(*KeyEvent)
}

// NewMemoryHost returns a host whose fragment starts at fragment.
func NewMemoryHost(fragment string) *MemoryHost {
	return &MemoryHost{
		fragment: fragment,
		onChange: make(map[int]func(string)),
		onKey:    make(map[int]func(*KeyEvent)),
	}
}

// Fragment implements Location.
func (h *MemoryHost) Fragment() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fragment
}

// SetFragment implements Location.
func (h *MemoryHost) SetFragment(fragment string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if fragment == h.fragment {
		return
	}
	h.fragment = fragment
	h.pending = append(h.pending, fragment)
}

// OnFragmentChange implements Location.
func (h *MemoryHost) OnFragmentChange(fn func(string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.onChange[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.onChange, id)
	}
}

// OnKeyDown implements KeySource.
func (h *MemoryHost) OnKeyDown(fn func(*KeyEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.onKey[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.onKey, id)
	}
}

// Navigate simulates the user editing the fragment (or using back/forward).
// Listeners fire immediately when the value changes.
func (h *MemoryHost) Navigate(fragment string) {
	h.mu.Lock()
	if fragment == h.fragment {
		h.mu.Unlock()
		return
	}
	h.fragment = fragment
	h.mu.Unlock()
	h.fireChange(fragment)
}

// Flush delivers queued fragment change events and returns how many were
// delivered.
func (h *MemoryHost) Flush() int {
	delivered := 0
	for {
		h.mu.Lock()
		if len(h.pending) == 0 {
			h.mu.Unlock()
			return delivered
		}
		next := h.pending[0]
		h.pending = h.pending[1:]
		h.mu.Unlock()

		h.fireChange(next)
		delivered++
	}
}

// Press delivers a key event to subscribers and returns it.
func (h *MemoryHost) Press(ev *KeyEvent) *KeyEvent {
	h.mu.Lock()
	fns := make([]func(*KeyEvent), 0, len(h.onKey))
	for _, fn := range h.onKey {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHost) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.onChange) + len(h.onKey)
}

func (h *MemoryHost) fireChange(fragment string) {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.onChange))
	for _, fn := range h.onChange {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(fragment)
	}
}
