package tinkerdeck

import "github.com/livetemplate/tinkerdeck/pkg/dom"

// StepState is the reveal state of a step.
type StepState int

const (
	// StepInactive steps have not been revealed yet.
	StepInactive StepState = iota
	// StepActive steps are part of the accumulated reveal.
	StepActive
	// StepCurrent is the most recently revealed step. It is also active.
	StepCurrent
)

func (s StepState) String() string {
	switch s {
	case StepActive:
		return "active"
	case StepCurrent:
		return "current"
	default:
		return "inactive"
	}
}

// Step is a revealable unit inside a slide.
type Step struct {
	index int
	el    dom.Element
}

// Index returns the step's position within its slide.
func (s *Step) Index() int { return s.index }

// Element returns the underlying document element.
func (s *Step) Element() dom.Element { return s.el }

// State derives the step's state from its marker classes.
func (s *Step) State() StepState {
	switch {
	case s.el.HasClass(ClassStepCurrent):
		return StepCurrent
	case s.el.HasClass(ClassStepActive):
		return StepActive
	default:
		return StepInactive
	}
}

func (s *Step) activate() {
	s.el.AddClass(ClassStepCurrent, ClassStepActive)
}

func (s *Step) demote() {
	s.el.RemoveClass(ClassStepCurrent)
}

func (s *Step) markCurrent() {
	s.el.AddClass(ClassStepCurrent)
}

func (s *Step) reset() {
	s.el.RemoveClass(ClassStepCurrent, ClassStepActive)
}

// ExtractSteps returns the steps under slide in document order. The result
// is a snapshot: later changes to the slide are not reflected in it.
func ExtractSteps(slide dom.Element, selector string) []*Step {
	if selector == "" {
		selector = DefaultStepSelector
	}
	els := slide.QueryAll(selector)
	steps := make([]*Step, len(els))
	for i, el := range els {
		steps[i] = &Step{index: i, el: el}
	}
	return steps
}
