package tinkerdeck

import (
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Frame is an embedded frame inside a slide.
type Frame struct {
	el dom.Element
}

// Element returns the underlying document element.
func (f *Frame) Element() dom.Element { return f.el }

// Source returns the effective source ("" when suspended).
func (f *Frame) Source() string {
	src, _ := f.el.Attr(AttrSrc)
	return src
}

// StoredSource returns the source parked while suspended.
func (f *Frame) StoredSource() string {
	src, _ := f.el.Attr(AttrStoredSrc)
	return src
}

// Live reports whether the frame currently has a source.
func (f *Frame) Live() bool {
	return f.Source() != ""
}

func (f *Frame) suspend() bool {
	src := f.Source()
	if src == "" {
		return false
	}
	f.el.SetAttr(AttrStoredSrc, src)
	f.el.RemoveAttr(AttrSrc)
	// Removing src alone can leave the loaded document running.
	f.el.Reload()
	return true
}

func (f *Frame) resume() bool {
	stored := f.StoredSource()
	if stored == "" {
		return false
	}
	f.el.SetAttr(AttrSrc, stored)
	return true
}

// FramesOf returns the embedded frames under a slide element.
func FramesOf(slide dom.Element) []*Frame {
	els := slide.QueryAll(FrameSelector)
	frames := make([]*Frame, len(els))
	for i, el := range els {
		frames[i] = &Frame{el: el}
	}
	return frames
}

// FrameManager keeps at most one slide's frames live.
type FrameManager struct {
	slides []*Slide
	log    *zap.Logger
}

// NewFrameManager returns a manager over the given slides.
func NewFrameManager(slides []*Slide, log *zap.Logger) *FrameManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &FrameManager{slides: slides, log: log}
}

// SuspendAll parks the source of every live frame in the deck and forces
// it to unload. It returns the number of frames suspended.
func (m *FrameManager) SuspendAll() int {
	n := 0
	for _, s := range m.slides {
		for _, f := range FramesOf(s.el) {
			if f.suspend() {
				n++
			}
		}
	}
	if n > 0 {
		m.log.Debug("suspended frames", zap.Int("count", n))
	}
	return n
}

// ResumeSlide restores the frames of one slide and returns how many were
// restored.
func (m *FrameManager) ResumeSlide(s *Slide) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, f := range FramesOf(s.el) {
		if f.resume() {
			n++
		}
	}
	if n > 0 {
		m.log.Debug("resumed frames", zap.Int("slide", s.index), zap.Int("count", n))
	}
	return n
}
