package tinkerdeck

import (
	"strconv"

	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

// Progress reflects the current slide position into a range-like element.
// A nil *Progress is valid and ignores updates.
type Progress struct {
	el dom.Element
}

// BindProgress sets the element's maximum to total and its value to 0.
func BindProgress(el dom.Element, total int) *Progress {
	if el == nil {
		return nil
	}
	el.SetAttr("max", strconv.Itoa(total))
	el.SetAttr("value", "0")
	el.AddClass(ClassProgress)
	return &Progress{el: el}
}

// Update shows slide index as position index+1.
func (p *Progress) Update(index int) {
	if p == nil {
		return
	}
	p.el.SetAttr("value", strconv.Itoa(index+1))
}

// Value returns the element's current value, or 0 when unbound.
func (p *Progress) Value() int {
	if p == nil {
		return 0
	}
	v, _ := p.el.Attr("value")
	n, _ := strconv.Atoi(v)
	return n
}
