package template

import (
	"strings"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
)

// Param is one declared template parameter, with an optional default.
type Param struct {
	Name    string
	Default *kdl.Value
}

// Template is a registered, parameterized, reusable subtree. The
// captured node's children are the body. Params and UsesChildren are
// computed once at registration and only read afterwards.
type Template struct {
	Name         string
	Node         *kdl.Node
	Params       []Param
	UsesChildren bool
}

// IsParam reports whether name is a declared parameter.
func (t *Template) IsParam(name string) bool {
	for _, p := range t.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// register parses a `@template "name" { @params ...; body }` node and
// stores the resulting template, overwriting any previous registration
// under the same name.
func (p *Plugin) register(node *kdl.Node, ctx *emitter.Context) error {
	name, err := templateName(node, ctx)
	if err != nil {
		return err
	}
	if !node.HasChildren() {
		return emitter.Errorf("@template %q: template must have children", name)
	}

	clone := node.Clone()
	params := extractParams(clone.Children)
	p.templates[name] = &Template{
		Name:         name,
		Node:         clone,
		Params:       params,
		UsesChildren: containsCommand(clone, childrenMarker),
	}
	return nil
}

func templateName(node *kdl.Node, ctx *emitter.Context) (string, error) {
	val, ok := node.Arg(0)
	if !ok {
		// the original accepted `@template name="..."`; keep it working
		val, ok = node.Prop("name")
	}
	if !ok {
		return "", emitter.Errorf("@template: missing required name parameter")
	}
	name := ctx.Emitter.Vars.ExpandValue(val)
	if name == "" {
		return "", emitter.Errorf("@template: template name cannot be empty")
	}
	return name, nil
}

// extractParams removes a leading @params declaration child from the
// body and returns the declared parameters: positional entries declare
// a parameter without a default, keyed entries declare one with a
// default value.
func extractParams(body *kdl.Document) []Param {
	if len(body.Nodes) == 0 || body.Nodes[0].Name != "@params" {
		return nil
	}
	decl := body.Nodes[0]
	body.Nodes = body.Nodes[1:]

	params := make([]Param, 0, len(decl.Entries))
	for _, entry := range decl.Entries {
		if entry.IsPositional() {
			params = append(params, Param{Name: entry.Value.Text()})
			continue
		}
		val := entry.Value
		params = append(params, Param{Name: entry.Name, Default: &val})
	}
	return params
}

// containsCommand reports whether any node in the subtree carries the
// given command name.
func containsCommand(node *kdl.Node, command string) bool {
	if strings.TrimPrefix(node.Name, commandPrefix) == command && strings.HasPrefix(node.Name, commandPrefix) {
		return true
	}
	if node.Children == nil {
		return false
	}
	for _, child := range node.Children.Nodes {
		if containsCommand(child, command) {
			return true
		}
	}
	return false
}
