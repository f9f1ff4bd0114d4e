package tinkerdeck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandFor(t *testing.T) {
	tests := []struct {
		name string
		ev   *KeyEvent
		want Command
	}{
		{"arrow left", &KeyEvent{Key: "ArrowLeft"}, CommandPreviousSlide},
		{"arrow right", &KeyEvent{Key: "ArrowRight"}, CommandNextSlide},
		{"space", &KeyEvent{Key: " "}, CommandAdvanceStep},
		{"arrow down", &KeyEvent{Key: "ArrowDown"}, CommandAdvanceStep},
		{"arrow up", &KeyEvent{Key: "ArrowUp"}, CommandGoBackStep},
		{"legacy left", &KeyEvent{Key: "Left"}, CommandPreviousSlide},
		{"code left", &KeyEvent{KeyCode: KeyCodeLeft}, CommandPreviousSlide},
		{"code up", &KeyEvent{KeyCode: KeyCodeUp}, CommandGoBackStep},
		{"code right", &KeyEvent{KeyCode: KeyCodeRight}, CommandNextSlide},
		{"code down", &KeyEvent{KeyCode: KeyCodeDown}, CommandAdvanceStep},
		{"code space", &KeyEvent{KeyCode: KeyCodeSpace}, CommandAdvanceStep},
		{"key wins over code", &KeyEvent{Key: "a", KeyCode: KeyCodeLeft}, CommandNone},
		{"unmapped", &KeyEvent{Key: "Enter"}, CommandNone},
		{"shift", &KeyEvent{Key: "ArrowLeft", Shift: true}, CommandNone},
		{"ctrl", &KeyEvent{Key: " ", Ctrl: true}, CommandNone},
		{"alt", &KeyEvent{KeyCode: KeyCodeRight, Alt: true}, CommandNone},
		{"meta", &KeyEvent{Key: "ArrowUp", Meta: true}, CommandNone},
		{"nil", nil, CommandNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommandFor(tt.ev))
		})
	}
}

func TestKeyDispatcher(t *testing.T) {
	host := NewMemoryHost("")
	nav := &recordingNavigator{}
	k := NewKeyDispatcher(host, nav)

	for _, key := range []string{"ArrowLeft", "ArrowRight", " ", "ArrowUp", "ArrowDown"} {
		ev := host.Press(&KeyEvent{Key: key})
		assert.True(t, ev.DefaultPrevented(), key)
	}
	assert.Equal(t, []string{"prev", "next", "advance", "back", "advance"}, nav.calls)

	ev := host.Press(&KeyEvent{Key: "Tab"})
	assert.False(t, ev.DefaultPrevented())

	ev = host.Press(&KeyEvent{Key: "ArrowRight", Ctrl: true})
	assert.False(t, ev.DefaultPrevented())
	assert.Len(t, nav.calls, 5)

	k.Close()
	host.Press(&KeyEvent{Key: "ArrowRight"})
	assert.Len(t, nav.calls, 5)
	assert.Equal(t, 0, host.Subscribers())
}
