package tinkerdeck

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// SlideNavigator moves a deck to an absolute slide index.
type SlideNavigator interface {
	ShowSlide(index int)
}

// FormatFragment returns the fragment for a 0-based slide index. The
// external form is 1-based so that the first slide is never "#0".
func FormatFragment(index int) string {
	return "#" + strconv.Itoa(index+1)
}

// ParseFragment returns the 0-based slide index named by a fragment. A
// leading '#' is optional. The number is read like parseInt in base 10: a
// sign is accepted and anything after the digits is ignored. Leading
// whitespace is skipped too, though browsers percent-encode it ("#%202"),
// which does not parse. A missing number or 0 yields ok == false.
func ParseFragment(fragment string) (index int, ok bool) {
	s := strings.TrimPrefix(fragment, "#")
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// Only range errors are possible here; saturate like a float would.
		if strings.HasPrefix(s, "-") {
			n = math.MinInt64
		} else {
			n = math.MaxInt64
		}
	}
	if n == 0 {
		return 0, false
	}
	if n > math.MaxInt {
		n = math.MaxInt
	}
	if n < math.MinInt+1 {
		n = math.MinInt + 1
	}
	return int(n) - 1, true
}

// HashRouter links a deck's current index to the host's address fragment.
type HashRouter struct {
	loc    Location
	nav    SlideNavigator
	cancel func()
}

// NewHashRouter subscribes nav to external fragment changes on loc.
func NewHashRouter(loc Location, nav SlideNavigator) *HashRouter {
	r := &HashRouter{loc: loc, nav: nav}
	r.cancel = loc.OnFragmentChange(r.handle)
	return r
}

// Target returns the slide index named by the current fragment.
func (r *HashRouter) Target() (int, bool) {
	return ParseFragment(r.loc.Fragment())
}

// Update writes the fragment for index.
func (r *HashRouter) Update(index int) {
	r.loc.SetFragment(FormatFragment(index))
}

// Close releases the fragment subscription.
func (r *HashRouter) Close() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *HashRouter) handle(fragment string) {
	index, ok := ParseFragment(fragment)
	if !ok {
		// No usable target: clamps to the first slide.
		index = 0
	}
	r.nav.ShowSlide(index)
}
