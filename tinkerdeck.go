// Package tinkerdeck provides the core library for presenting slide decks
// embedded in HTML documents: slide and step navigation, address-fragment
// routing, keyboard control and suspension of off-screen embedded frames.
package tinkerdeck

import (
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Marker classes and attributes applied to the document.
const (
	ClassSlide       = "md-slide"
	ClassWrapper     = "md-wrapper"
	ClassCurrent     = "md-current"
	ClassStep        = "md-step"
	ClassStepActive  = "md-step-active"
	ClassStepCurrent = "md-step-current"
	ClassProgress    = "md-progress"

	AttrSrc       = "src"
	AttrStoredSrc = "data-src"
)

// Default selectors.
const (
	DefaultSlideSelector    = "section"
	DefaultStepSelector     = "." + ClassStep
	DefaultProgressSelector = "progress.deck-progress"
	FrameSelector           = "iframe"
)

// State is a snapshot of a deck's navigation position.
type State struct {
	Index      int    `json:"index"`
	StepIndex  int    `json:"step"`
	SlideCount int    `json:"slides"`
	StepCount  int    `json:"steps"`
	Fragment   string `json:"fragment"`
}

// Listener is notified after a navigation command changed the deck state.
type Listener func(prev, next State)

type options struct {
	progress     dom.Element
	stepSelector string
	listeners    []Listener
	logger       *zap.Logger
}

// Option configures a Deck.
type Option func(*options)

// WithProgress binds a range-like element (usually <progress>) that reflects
// the current slide position.
func WithProgress(el dom.Element) Option {
	return func(o *options) {
		o.progress = el
	}
}

// WithStepSelector overrides the selector used to find a slide's steps.
func WithStepSelector(selector string) Option {
	return func(o *options) {
		if selector != "" {
			o.stepSelector = selector
		}
	}
}

// WithListener registers a state change listener.
func WithListener(fn Listener) Option {
	return func(o *options) {
		if fn != nil {
			o.listeners = append(o.listeners, fn)
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultOptions() *options {
	return &options{
		stepSelector: DefaultStepSelector,
		logger:       zap.NewNop(),
	}
}
