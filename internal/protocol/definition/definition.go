package definition

import "github.com/danmuck/wirescript/internal/protocol/serial"

// Definition is the caller-supplied description of one named message.
type Definition struct {
	Name string
	// Type is a registry tag; empty means serial.DefaultType.
	Type string
	// Length is the byte count to consume; required on the first definition.
	Length *int
	First  bool

	// Optional overrides of the registry codec for Type.
	Serialize   serial.SerializeFunc
	Deserialize serial.DeserializeFunc

	// Transition picks the next message; nil ends the protocol.
	Transition Transition
}

func Len(n int) *int {
	return &n
}

// Step names the next expected message. When Sized is false the named
// definition's own Length applies.
type Step struct {
	Name   string
	Length int
	Sized  bool
}

func Goto(name string) Step {
	return Step{Name: name}
}

func GotoLen(name string, n int) Step {
	return Step{Name: name, Length: n, Sized: true}
}

// Transition decides what follows a decoded message. Returning false ends
// the protocol.
type Transition interface {
	Decide(value any) (Step, bool)
}

type TransitionFunc func(value any) (Step, bool)

func (f TransitionFunc) Decide(value any) (Step, bool) {
	return f(value)
}

// End terminates on every message.
var End Transition = TransitionFunc(func(any) (Step, bool) {
	return Step{}, false
})

// Always returns a transition that unconditionally moves to step.
func Always(step Step) Transition {
	return TransitionFunc(func(any) (Step, bool) {
		return step, true
	})
}
