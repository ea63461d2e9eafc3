package emitter

import (
	"io"

	"github.com/okubit/humid/internal/kdl"
)

// EmitStatus is a plugin's answer to "do you own this node?".
type EmitStatus int

const (
	// StatusSkip declines the node; the walker asks the next plugin.
	StatusSkip EmitStatus = iota
	// StatusEmit claims the node for a read-only emission pass.
	StatusEmit
	// StatusEmitMut claims the node for a pass that mutates plugin
	// state (e.g. registering a template).
	StatusEmitMut
)

// String returns the string representation of the EmitStatus.
func (s EmitStatus) String() string {
	switch s {
	case StatusSkip:
		return "skip"
	case StatusEmit:
		return "emit"
	case StatusEmitMut:
		return "emit-mut"
	default:
		return "unknown"
	}
}

// Context carries what a plugin needs to emit in the walker's place.
type Context struct {
	// Indent is the pre-computed indentation for the current level.
	Indent string
	// Writer is the sink the build is emitting into.
	Writer io.Writer
	// Emitter is the emitter walking the current node's siblings.
	Emitter *Emitter
}

// Plugin intercepts node emission. The two-step negotiation exists
// because a plugin may need to mutate its own registration state while
// the walker is mid-iteration over a shared child list: ShouldEmit
// decides, EmitNode renders without touching plugin state, and
// EmitNodeMut runs on a privately owned copy of the plugin when state
// has to change.
type Plugin interface {
	// Clone returns a copy whose mutations are invisible to the
	// receiver. Called lazily: only when a shared plugin is about to
	// be mutated.
	Clone() Plugin

	// ShouldEmit reports whether the plugin claims the node. It must
	// not consume the node or mutate anything.
	ShouldEmit(node *kdl.Node, e *Emitter) EmitStatus

	// EmitNode renders a claimed node. It may recurse through the
	// context's emitter but must not register new plugin state.
	EmitNode(node *kdl.Node, ctx *Context) error

	// EmitNodeMut renders a claimed node and may mutate plugin state.
	// The walker guarantees the receiver is privately owned.
	EmitNodeMut(node *kdl.Node, ctx *Context) error
}

// pluginSlot pairs a plugin with its sharing state. Slots are copied
// by value when an emitter forks; both sides are marked shared so the
// first mutation on either side clones the plugin, keeping the other
// side's view intact.
type pluginSlot struct {
	impl   Plugin
	shared bool
}

func forkSlots(slots []pluginSlot) []pluginSlot {
	for i := range slots {
		slots[i].shared = true
	}
	out := make([]pluginSlot, len(slots))
	copy(out, slots)
	return out
}
