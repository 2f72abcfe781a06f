package types

import "fmt"

// Action describes the side effect the engine wants for one key event.
// The set of implementations is closed: Emit, DeleteAndEmit, PassThrough
// and Consume.
type Action interface {
	action()
}

// Emit inserts Text at the cursor.
type Emit struct {
	Text string
}

// DeleteAndEmit removes Delete previously injected characters and then
// inserts Text. Highlight marks Text as an uncommitted preview.
type DeleteAndEmit struct {
	Delete    int
	Text      string
	Highlight bool
}

// PassThrough forwards the original key event unchanged.
type PassThrough struct{}

// Consume swallows the key event.
type Consume struct{}

func (Emit) action()          {}
func (DeleteAndEmit) action() {}
func (PassThrough) action()   {}
func (Consume) action()       {}

func (a Emit) String() string { return fmt.Sprintf("Emit(%q)", a.Text) }

func (a DeleteAndEmit) String() string {
	return fmt.Sprintf("DeleteAndEmit(%d, %q, highlight=%t)", a.Delete, a.Text, a.Highlight)
}

func (PassThrough) String() string { return "PassThrough" }
func (Consume) String() string     { return "Consume" }
