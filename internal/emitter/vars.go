package emitter

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/okubit/humid/internal/kdl"
)

var varPattern = regexp.MustCompile(`\$(\$|\w+)`)

// Vars is the scoped variable environment: a name→text mapping with
// copy-on-write value semantics. Forking is O(1); the first Insert on
// a forked handle clones the backing map so a child's writes never
// reach its parent.
type Vars struct {
	vars  map[string]string
	owned bool
}

// NewVars returns an empty, owned environment.
func NewVars() Vars {
	return Vars{vars: make(map[string]string), owned: true}
}

// Fork returns a handle sharing this environment's backing map. The
// fork copies nothing until it is first mutated.
func (v *Vars) Fork() Vars {
	return Vars{vars: v.vars, owned: false}
}

func (v *Vars) mutable() map[string]string {
	if !v.owned {
		v.vars = maps.Clone(v.vars)
		v.owned = true
	}
	return v.vars
}

// Insert binds name to text, shadowing any earlier binding.
func (v *Vars) Insert(name, text string) {
	v.mutable()[name] = text
}

// Get looks up a binding.
func (v *Vars) Get(name string) (string, bool) {
	text, ok := v.vars[name]
	return text, ok
}

// Len returns the number of bindings.
func (v *Vars) Len() int { return len(v.vars) }

// Names returns all bound names, sorted.
func (v *Vars) Names() []string {
	return slices.Sorted(maps.Keys(v.vars))
}

// Snapshot returns a copy of the current bindings.
func (v *Vars) Snapshot() map[string]string {
	return maps.Clone(v.vars)
}

// Clear drops every binding.
func (v *Vars) Clear() {
	if len(v.vars) == 0 {
		return
	}
	if !v.owned {
		v.vars = make(map[string]string)
		v.owned = true
		return
	}
	clear(v.vars)
}

// ExpandString replaces every "$name" with the bound value of name.
// Unknown names resolve to empty text rather than failing; "$$"
// escapes to a literal "$". Replacement is textual and non-recursive:
// expanded values are not themselves re-expanded.
func (v *Vars) ExpandString(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		if m == "$$" {
			return "$"
		}
		val, _ := v.Get(m[1:])
		return val
	})
}

// ExpandValue stringifies non-string scalars directly and applies
// ExpandString to strings.
func (v *Vars) ExpandValue(val kdl.Value) string {
	if val.Kind == kdl.KindString {
		return v.ExpandString(val.Str)
	}
	return val.Text()
}
