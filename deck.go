package tinkerdeck

import (
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Slide is one presentation unit of a deck.
type Slide struct {
	index int
	el    dom.Element
	steps []*Step
}

// Index returns the slide's position in the deck.
func (s *Slide) Index() int { return s.index }

// Element returns the slide container.
func (s *Slide) Element() dom.Element { return s.el }

// Steps returns the steps extracted the last time the slide became current.
func (s *Slide) Steps() []*Step { return s.steps }

// Frames returns the embedded frames under the slide.
func (s *Slide) Frames() []*Frame { return FramesOf(s.el) }

// IsCurrent reports whether the slide carries the current marker.
func (s *Slide) IsCurrent() bool { return s.el.HasClass(ClassCurrent) }

// Deck is the navigation controller for a set of slides.
//
// A Deck is not safe for concurrent use; the host must serialise events the
// way a browser event loop does.
type Deck struct {
	slides           []*Slide
	currentIndex     int
	currentStepIndex int

	stepSelector string
	progress     *Progress
	frames       *FrameManager
	router       *HashRouter
	keys         *KeyDispatcher
	listeners    []Listener
	log          *zap.Logger
}

// New builds a deck over slide elements, attaches it to host and shows the
// slide named by the host's fragment (or the first slide).
func New(elements []dom.Element, host Host, opts ...Option) *Deck {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	d := &Deck{
		currentIndex:     -1,
		currentStepIndex: -1,
		stepSelector:     o.stepSelector,
		listeners:        o.listeners,
		log:              o.logger,
	}
	for i, el := range elements {
		el.AddClass(ClassSlide)
		d.slides = append(d.slides, &Slide{index: i, el: el})
	}
	d.frames = NewFrameManager(d.slides, d.log)
	d.progress = BindProgress(o.progress, len(d.slides))

	d.router = NewHashRouter(host, d)
	d.keys = NewKeyDispatcher(host, d)

	start := d.currentIndex
	if target, ok := d.router.Target(); ok {
		start = target
	}
	d.ShowSlide(start)

	return d
}

// Close releases the deck's key and fragment subscriptions. It is safe to
// call more than once.
func (d *Deck) Close() {
	d.keys.Close()
	d.router.Close()
}

// Len returns the number of slides.
func (d *Deck) Len() int { return len(d.slides) }

// Slide returns slide i, or nil when out of range.
func (d *Deck) Slide(i int) *Slide {
	if i < 0 || i >= len(d.slides) {
		return nil
	}
	return d.slides[i]
}

// Slides returns all slides in presentation order.
func (d *Deck) Slides() []*Slide { return d.slides }

// CurrentIndex returns the current slide index (-1 before the first show).
func (d *Deck) CurrentIndex() int { return d.currentIndex }

// CurrentStepIndex returns the current step index (-1 when no step is
// active).
func (d *Deck) CurrentStepIndex() int { return d.currentStepIndex }

// CurrentSlide returns the current slide, or nil.
func (d *Deck) CurrentSlide() *Slide { return d.Slide(d.currentIndex) }

// CurrentStep returns the current step, or nil.
func (d *Deck) CurrentStep() *Step {
	s := d.CurrentSlide()
	if s == nil || d.currentStepIndex < 0 || d.currentStepIndex >= len(s.steps) {
		return nil
	}
	return s.steps[d.currentStepIndex]
}

// Progress returns the bound progress indicator, or nil.
func (d *Deck) Progress() *Progress { return d.progress }

// State returns a snapshot of the navigation position.
func (d *Deck) State() State {
	st := State{
		Index:      d.currentIndex,
		StepIndex:  d.currentStepIndex,
		SlideCount: len(d.slides),
	}
	if s := d.CurrentSlide(); s != nil {
		st.StepCount = len(s.steps)
	}
	if d.currentIndex >= 0 {
		st.Fragment = FormatFragment(d.currentIndex)
	}
	return st
}

// ShowSlide makes slide index current. The index is clamped to the deck;
// showing the slide that is already current does nothing at all.
func (d *Deck) ShowSlide(index int) {
	index = min(max(0, index), len(d.slides)-1)
	if index == d.currentIndex {
		return
	}
	prev := d.State()

	d.frames.SuspendAll()

	d.currentIndex = index
	d.currentStepIndex = -1
	d.router.Update(d.currentIndex)

	for _, s := range d.slides {
		s.el.RemoveClass(ClassCurrent)
	}
	cur := d.slides[d.currentIndex]
	cur.el.AddClass(ClassCurrent)

	cur.steps = ExtractSteps(cur.el, d.stepSelector)
	for _, step := range cur.steps {
		step.reset()
	}
	d.frames.ResumeSlide(cur)

	d.progress.Update(d.currentIndex)

	d.log.Debug("show slide", zap.Int("index", index), zap.Int("steps", len(cur.steps)))
	d.notify(prev)
}

// ShowNextSlide moves to the next slide if there is one.
func (d *Deck) ShowNextSlide() {
	if d.currentIndex+1 < len(d.slides) {
		d.ShowSlide(d.currentIndex + 1)
	}
}

// ShowPreviousSlide moves to the previous slide if there is one.
func (d *Deck) ShowPreviousSlide() {
	if d.currentIndex > 0 {
		d.ShowSlide(d.currentIndex - 1)
	}
}

// AdvanceStep reveals the next step of the current slide, or moves to the
// next slide when every step is revealed.
func (d *Deck) AdvanceStep() {
	cur := d.CurrentSlide()
	if cur == nil {
		return
	}
	if d.currentStepIndex+1 >= len(cur.steps) {
		d.ShowNextSlide()
		return
	}
	prev := d.State()

	if step := d.CurrentStep(); step != nil {
		step.demote()
	}
	d.currentStepIndex++
	cur.steps[d.currentStepIndex].activate()

	d.log.Debug("advance step", zap.Int("index", d.currentIndex), zap.Int("step", d.currentStepIndex))
	d.notify(prev)
}

// GoBackStep hides the current step. It never leaves the current slide:
// going back from the first step is a no-op.
func (d *Deck) GoBackStep() {
	if d.currentStepIndex < 0 {
		return
	}
	prev := d.State()

	if step := d.CurrentStep(); step != nil {
		step.reset()
	}
	d.currentStepIndex--
	if step := d.CurrentStep(); step != nil {
		step.markCurrent()
	}

	d.log.Debug("go back step", zap.Int("index", d.currentIndex), zap.Int("step", d.currentStepIndex))
	d.notify(prev)
}

func (d *Deck) notify(prev State) {
	if len(d.listeners) == 0 {
		return
	}
	next := d.State()
	if next == prev {
		return
	}
	for _, fn := range d.listeners {
		fn(prev, next)
	}
}
