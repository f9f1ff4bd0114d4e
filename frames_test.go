package tinkerdeck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/tinkerdeck/pkg/dom"
)

const framedDeck = `<html><body>
<section><iframe id="a" src="https://example.com/a"></iframe></section>
<section><p>no frames</p></section>
<section><iframe id="b" src="https://example.com/b"></iframe><iframe id="c"></iframe></section>
</body></html>`

func newFramedDeck(t *testing.T, fragment string) (*dom.Document, *MemoryHost, *Deck) {
	t.Helper()
	doc, err := dom.ParseString(framedDeck)
	require.NoError(t, err)
	host := NewMemoryHost(fragment)
	d := New(doc.QueryAll(DefaultSlideSelector), host)
	t.Cleanup(d.Close)
	return doc, host, d
}

func liveFrames(d *Deck) map[int]int {
	live := map[int]int{}
	for _, s := range d.Slides() {
		for _, f := range s.Frames() {
			if f.Live() {
				live[s.Index()]++
			}
		}
	}
	return live
}

func TestOnlyCurrentSlideFramesAreLive(t *testing.T) {
	_, _, d := newFramedDeck(t, "")
	assert.Equal(t, map[int]int{0: 1}, liveFrames(d))

	b := d.Slide(2).Frames()[0]
	assert.False(t, b.Live())
	assert.Equal(t, "https://example.com/b", b.StoredSource())

	d.ShowSlide(2)
	assert.Equal(t, map[int]int{2: 1}, liveFrames(d))
	assert.Equal(t, "https://example.com/b", b.Source())

	d.ShowSlide(1)
	assert.Empty(t, liveFrames(d))

	d.ShowSlide(0)
	assert.Equal(t, map[int]int{0: 1}, liveFrames(d))
}

func TestFrameWithoutSourceStaysEmpty(t *testing.T) {
	_, _, d := newFramedDeck(t, "#3")

	c := d.Slide(2).Frames()[1]
	_, hasSrc := c.Element().Attr(AttrSrc)
	assert.False(t, hasSrc)
	assert.Empty(t, c.StoredSource())
}

func TestSuspendPrecedesResume(t *testing.T) {
	doc, _, d := newFramedDeck(t, "")
	doc.Drain()

	d.ShowSlide(2)
	ops := doc.Drain()

	a := d.Slide(0).Frames()[0].Element().ID()
	b := d.Slide(2).Frames()[0].Element().ID()

	reloadA, resumeB := -1, -1
	for i, op := range ops {
		if op.Op == dom.OpReload && op.Target == a {
			reloadA = i
		}
		if op.Op == dom.OpSetAttr && op.Target == b && op.Name == AttrSrc {
			resumeB = i
		}
	}
	require.NotEqual(t, -1, reloadA)
	require.NotEqual(t, -1, resumeB)
	assert.Less(t, reloadA, resumeB)
	assert.Contains(t, ops, dom.Op{Op: dom.OpRemoveAttr, Target: a, Name: AttrSrc})
}

func TestFrameManagerCounts(t *testing.T) {
	doc, err := dom.ParseString(framedDeck)
	require.NoError(t, err)
	var slides []*Slide
	for i, el := range doc.QueryAll(DefaultSlideSelector) {
		slides = append(slides, &Slide{index: i, el: el})
	}
	m := NewFrameManager(slides, nil)

	assert.Equal(t, 2, m.SuspendAll())
	assert.Equal(t, 0, m.SuspendAll())
	assert.Equal(t, 1, m.ResumeSlide(slides[2]))
	assert.Equal(t, 0, m.ResumeSlide(slides[1]))
	assert.Equal(t, 0, m.ResumeSlide(nil))
}
