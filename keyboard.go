package tinkerdeck

// Legacy key codes.
const (
	KeyCodeSpace = 32
	KeyCodeLeft  = 37
	KeyCodeUp    = 38
	KeyCodeRight = 39
	KeyCodeDown  = 40
)

// StepNavigator is the set of relative navigation commands.
type StepNavigator interface {
	ShowPreviousSlide()
	ShowNextSlide()
	AdvanceStep()
	GoBackStep()
}

// Command is a navigation command bound to a key.
type Command int

const (
	CommandNone Command = iota
	CommandPreviousSlide
	CommandNextSlide
	CommandAdvanceStep
	CommandGoBackStep
)

// CommandFor maps a key event to a command. Events with modifiers map to
// CommandNone.
func CommandFor(ev *KeyEvent) Command {
	if ev == nil || ev.HasModifier() {
		return CommandNone
	}
	switch ev.Key {
	case "ArrowLeft", "Left":
		return CommandPreviousSlide
	case "ArrowRight", "Right":
		return CommandNextSlide
	case " ", "Spacebar", "ArrowDown", "Down":
		return CommandAdvanceStep
	case "ArrowUp", "Up":
		return CommandGoBackStep
	case "":
	default:
		return CommandNone
	}
	switch ev.KeyCode {
	case KeyCodeLeft:
		return CommandPreviousSlide
	case KeyCodeRight:
		return CommandNextSlide
	case KeyCodeSpace, KeyCodeDown:
		return CommandAdvanceStep
	case KeyCodeUp:
		return CommandGoBackStep
	}
	return CommandNone
}

// KeyDispatcher turns key presses into navigation commands.
type KeyDispatcher struct {
	nav    StepNavigator
	cancel func()
}

// NewKeyDispatcher subscribes to src for the dispatcher's lifetime.
func NewKeyDispatcher(src KeySource, nav StepNavigator) *KeyDispatcher {
	k := &KeyDispatcher{nav: nav}
	if src != nil {
		k.cancel = src.OnKeyDown(func(ev *KeyEvent) { k.Dispatch(ev) })
	}
	return k
}

// Dispatch runs the command bound to ev and reports whether it was handled.
// Handled events have their default action prevented.
func (k *KeyDispatcher) Dispatch(ev *KeyEvent) bool {
	cmd := CommandFor(ev)
	if cmd == CommandNone {
		return false
	}
	ev.PreventDefault()
	switch cmd {
	case CommandPreviousSlide:
		k.nav.ShowPreviousSlide()
	case CommandNextSlide:
		k.nav.ShowNextSlide()
	case CommandAdvanceStep:
		k.nav.AdvanceStep()
	case CommandGoBackStep:
		k.nav.GoBackStep()
	}
	return true
}

// Close releases the key subscription.
func (k *KeyDispatcher) Close() {
	if k.cancel != nil {
		k.cancel()
		k.cancel = nil
	}
}
