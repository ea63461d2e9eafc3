package template

import (
	"strconv"
	"strings"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
)

// instantiate renders a registered template at a call site. The call's
// children replace @children markers in the body, the call's entries
// become variables in a forked scope, and undeclared keyed entries
// collect into the special $props variable.
func (p *Plugin) instantiate(name string, call *kdl.Node, ctx *emitter.Context) error {
	t, ok := p.templates[name]
	if !ok {
		return emitter.Errorf("@%s: unknown template", name)
	}

	if call.HasChildren() && !t.UsesChildren {
		return emitter.Errorf("%s: template was called with children but does not support them", name)
	}
	if containsCommand(call, childrenMarker) {
		return emitter.Errorf("%s: template call contains @children, infinite recursion detected", name)
	}

	body := t.Node.Clone()
	spliceChildren(body, callChildren(call))

	sub := ctx.Emitter.Fork()
	bindCallSite(t, call, body, ctx.Emitter, sub)

	return sub.Emit(body.Children, ctx.Writer)
}

func callChildren(call *kdl.Node) []*kdl.Node {
	if call.Children == nil {
		return nil
	}
	return call.Children.Nodes
}

// spliceChildren recursively replaces every @children node in the body
// with the call site's children block.
func spliceChildren(node *kdl.Node, children []*kdl.Node) {
	if node.Children == nil {
		return
	}
	spliced := make([]*kdl.Node, 0, len(node.Children.Nodes))
	for _, child := range node.Children.Nodes {
		if child.Name == commandPrefix+childrenMarker {
			spliced = append(spliced, instantiateChildren(child, children)...)
			continue
		}
		spliced = append(spliced, child)
	}
	node.Children.Nodes = spliced
	for _, child := range node.Children.Nodes {
		spliceChildren(child, children)
	}
}

// instantiateChildren clones the spliced children and pushes the
// marker's keyed entries onto each one that does not already carry an
// entry under that name. This lets a template supply default
// attributes for whatever the caller passes in.
func instantiateChildren(marker *kdl.Node, children []*kdl.Node) []*kdl.Node {
	out := make([]*kdl.Node, 0, len(children))
	for _, child := range children {
		clone := child.Clone()
		for _, entry := range marker.Entries {
			if entry.IsPositional() || hasEntry(clone, entry.Name) {
				continue
			}
			clone.Entries = append([]kdl.Entry{entry}, clone.Entries...)
		}
		out = append(out, clone)
	}
	return out
}

func hasEntry(node *kdl.Node, name string) bool {
	for _, entry := range node.Entries {
		if entry.Name == name {
			return true
		}
	}
	return false
}

// bindCallSite populates the template's scope: declared defaults first,
// then the call's keyed entries by name and positional entries as
// numbered variables, all expanded in the caller's environment. Keyed
// entries that are not declared parameters additionally collect into
// $props, which is appended verbatim to a single-rooted body.
func bindCallSite(t *Template, call *kdl.Node, body *kdl.Node, caller, sub *emitter.Emitter) {
	for _, param := range t.Params {
		if param.Default != nil {
			sub.Vars.Insert(param.Name, caller.Vars.ExpandValue(*param.Default))
		}
	}

	arg := 0
	for _, entry := range call.Entries {
		val := caller.Vars.ExpandValue(entry.Value)
		if entry.IsPositional() {
			sub.Vars.Insert(strconv.Itoa(arg), val)
			arg++
			continue
		}
		sub.Vars.Insert(entry.Name, val)
	}

	var extras []string
	for _, entry := range call.Entries {
		if entry.IsPositional() || t.IsParam(entry.Name) {
			continue
		}
		extras = append(extras, formatEntry(entry))
	}
	props := strings.Join(extras, " ")
	sub.Vars.Insert("props", props)

	// A single-rooted template gets $props applied to its root element
	// automatically, before any trailing inline-text entry.
	if len(body.Children.Nodes) == 1 {
		root := body.Children.Nodes[0]
		propsEntry := kdl.Entry{Value: kdl.String(props)}
		if n := len(root.Entries); n > 0 && root.Entries[n-1].IsPositional() {
			root.Entries = append(root.Entries[:n-1], propsEntry, root.Entries[n-1])
		} else {
			root.Entries = append(root.Entries, propsEntry)
		}
	}
}

// formatEntry renders a keyed entry back to attribute-fragment text,
// leaving variable references intact for expansion at emit time.
func formatEntry(entry kdl.Entry) string {
	switch entry.Value.Kind {
	case kdl.KindString:
		return entry.Name + `="` + entry.Value.Str + `"`
	default:
		return entry.Name + "=" + entry.Value.Text()
	}
}
