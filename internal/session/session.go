// Package session runs one deck controller per browser connection.
//
// A Session is the tinkerdeck.Host of its controller: key presses and
// fragment changes arrive as websocket envelopes, and the document mutations
// the controller makes are returned as patch ops for the browser to apply.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/livetemplate/tinkerdeck"
	"github.com/livetemplate/tinkerdeck/internal/document"
	"github.com/livetemplate/tinkerdeck/internal/journal"
	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Envelope types sent by the browser.
const (
	TypeHello      = "hello"
	TypeKey        = "key"
	TypeHashChange = "hashchange"
)

// Reply types sent to the browser.
const (
	TypePatch  = "patch"
	TypeReload = "reload"
	TypeError  = "error"
)

// ErrUnknownType is returned for envelopes with an unsupported type.
var ErrUnknownType = errors.New("unknown message type")

// Envelope is a message from the browser.
type Envelope struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Code     string `json:"code,omitempty"`
	KeyCode  int    `json:"keyCode,omitempty"`
	Shift    bool   `json:"shift,omitempty"`
	Ctrl     bool   `json:"ctrl,omitempty"`
	Alt      bool   `json:"alt,omitempty"`
	Meta     bool   `json:"meta,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// Reply is a message to the browser.
type Reply struct {
	Type    string            `json:"type"`
	Ops     []dom.Op          `json:"ops"`
	State   *tinkerdeck.State `json:"state,omitempty"`
	Handled bool              `json:"handled,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewReloadReply returns the reply asking the browser to reload the page.
func NewReloadReply() *Reply {
	return &Reply{Type: TypeReload, Ops: []dom.Op{}}
}

// NewErrorReply returns the reply reporting err to the browser.
func NewErrorReply(err error) *Reply {
	return &Reply{Type: TypeError, Ops: []dom.Op{}, Error: err.Error()}
}

// Recorder receives journal entries.
type Recorder interface {
	Record(e journal.Entry)
}

// Options configures a Session.
type Options struct {
	StepSelector  string
	KeysPerSecond float64 // 0 disables key rate limiting
	KeyBurst      int
	Recorder      Recorder
	Presenter     string
	Logger        *zap.Logger
}

// Session is a deck controller bound to one connection.
type Session struct {
	id   string
	name string

	// handleMu serialises envelopes; the controller is single-threaded.
	handleMu sync.Mutex

	mu       sync.Mutex
	doc      *dom.Document
	deck     *tinkerdeck.Deck
	fragment string
	// unechoed holds fragments sent to the browser whose hashchange has not
	// come back yet, oldest first.
	unechoed []string
	nextSub  int
	onChange map[int]func(string)
	onKey    map[int]func(*tinkerdeck.KeyEvent)

	limiter   *rate.Limiter
	recorder  Recorder
	presenter string
	log       *zap.Logger
}

// New starts a session on a private copy of d, positioned at fragment.
func New(d *document.Deck, fragment string, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		id:        uuid.NewString(),
		name:      d.Name,
		doc:       d.Doc.Clone(),
		fragment:  fragment,
		onChange:  make(map[int]func(string)),
		onKey:     make(map[int]func(*tinkerdeck.KeyEvent)),
		recorder:  opts.Recorder,
		presenter: opts.Presenter,
	}
	s.log = log.With(zap.String("session", s.id), zap.String("deck", d.Name))
	if opts.KeysPerSecond > 0 {
		burst := opts.KeyBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.KeysPerSecond), burst)
	}

	deckOpts := []tinkerdeck.Option{
		tinkerdeck.WithStepSelector(opts.StepSelector),
		tinkerdeck.WithLogger(s.log.Named("deck")),
		tinkerdeck.WithListener(s.record),
	}
	if p := d.Progress(s.doc); p != nil {
		deckOpts = append(deckOpts, tinkerdeck.WithProgress(p))
	}
	s.deck = tinkerdeck.New(d.Slides(s.doc), s, deckOpts...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Deck returns the session's controller.
func (s *Session) Deck() *tinkerdeck.Deck { return s.deck }

// Document returns the session's document.
func (s *Session) Document() *dom.Document { return s.doc }

// Handle applies an envelope and returns the reply for the browser, or nil
// when the envelope is dropped.
func (s *Session) Handle(env Envelope) (*Reply, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	switch env.Type {
	case TypeHello:
		// The controller already read the fragment at start; a later hello
		// (reconnect) is treated like a fragment change. A fresh page owes
		// no echoes.
		s.mu.Lock()
		s.unechoed = nil
		s.mu.Unlock()
		s.changeFragment(env.Fragment)
		return s.reply(false), nil

	case TypeKey:
		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Debug("key dropped by rate limit", zap.String("key", env.Key))
			return nil, nil
		}
		ev := &tinkerdeck.KeyEvent{
			Key:     env.Key,
			KeyCode: env.KeyCode,
			Shift:   env.Shift,
			Ctrl:    env.Ctrl,
			Alt:     env.Alt,
			Meta:    env.Meta,
		}
		s.press(ev)
		return s.reply(ev.DefaultPrevented()), nil

	case TypeHashChange:
		if s.consumeEcho(env.Fragment) {
			return s.reply(false), nil
		}
		s.changeFragment(env.Fragment)
		return s.reply(false), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

// Start returns the ops produced while the controller attached to the
// document, for the first patch sent to the browser.
func (s *Session) Start() *Reply {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.reply(false)
}

// Close detaches the controller.
func (s *Session) Close() {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	s.deck.Close()
}

func (s *Session) reply(handled bool) *Reply {
	st := s.deck.State()
	ops := s.doc.Drain()
	if ops == nil {
		ops = []dom.Op{}
	}
	return &Reply{Type: TypePatch, Ops: ops, State: &st, Handled: handled}
}

func (s *Session) record(prev, next tinkerdeck.State) {
	s.log.Debug("state", zap.Int("slide", next.Index), zap.Int("step", next.StepIndex))
	if s.recorder == nil {
		return
	}
	s.recorder.Record(journal.Entry{
		SessionID: s.id,
		Deck:      s.name,
		Slide:     next.Index,
		Step:      next.StepIndex,
		Fragment:  next.Fragment,
		Entered:   prev.Index != next.Index,
		Presenter: s.presenter,
	})
}

// Fragment implements tinkerdeck.Location.
func (s *Session) Fragment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fragment
}

// maxUnechoed bounds the fragments remembered for echo suppression.
const maxUnechoed = 32

// SetFragment implements tinkerdeck.Location. The browser is told to update
// its address; the hashchange it fires in response is dropped by
// consumeEcho, even when later navigation has already moved on.
func (s *Session) SetFragment(fragment string) {
	s.mu.Lock()
	if fragment == s.fragment {
		s.mu.Unlock()
		return
	}
	s.fragment = fragment
	s.unechoed = append(s.unechoed, fragment)
	if len(s.unechoed) > maxUnechoed {
		s.unechoed = s.unechoed[len(s.unechoed)-maxUnechoed:]
	}
	s.mu.Unlock()
	s.doc.SetFragment(fragment)
}

// consumeEcho reports whether fragment is the browser echoing one of our own
// writes. Echoes arrive in write order, so earlier outstanding writes are
// settled too. Any other fragment is a user navigation, after which no
// earlier echo can still be in flight.
func (s *Session) consumeEcho(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.unechoed {
		if f == fragment {
			s.unechoed = s.unechoed[i+1:]
			return true
		}
	}
	s.unechoed = nil
	return false
}

// OnFragmentChange implements tinkerdeck.Location.
func (s *Session) OnFragmentChange(fn func(string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onChange[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.onChange, id)
	}
}

// OnKeyDown implements tinkerdeck.KeySource.
func (s *Session) OnKeyDown(fn func(*tinkerdeck.KeyEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onKey[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.onKey, id)
	}
}

func (s *Session) changeFragment(fragment string) {
	s.mu.Lock()
	if fragment == s.fragment {
		s.mu.Unlock()
		return
	}
	s.fragment = fragment
	fns := make([]func(string), 0, len(s.onChange))
	for _, fn := range s.onChange {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(fragment)
	}
}

func (s *Session) press(ev *tinkerdeck.KeyEvent) {
	s.mu.Lock()
	fns := make([]func(*tinkerdeck.KeyEvent), 0, len(s.onKey))
	for _, fn := range s.onKey {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
