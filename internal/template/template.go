// Package template implements the template plugin: registration and
// instantiation of reusable subtrees, @children splicing, cross-file
// import/include with dependency tracking, bounded @for loops, and a
// @debug environment dump. It rides on the emitter's plugin protocol;
// commands are node names carrying the reserved "@" prefix.
package template

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
	"github.com/okubit/humid/internal/script"
)

const (
	commandPrefix  = "@"
	childrenMarker = "children"
)

// Plugin is the template subsystem. Registered templates are scoped
// state: emitter forks share the plugin until a mutation clones it,
// so a template registered inside a child block stays invisible to
// the parent scope. The dependency graph and the expression evaluator
// are shared across every clone.
type Plugin struct {
	templates map[string]*Template
	deps      *Graph
	eval      *script.Evaluator

	// file is the path of the file currently being walked; import and
	// include resolve relative paths against its directory.
	file string
}

// New returns an empty template plugin.
func New() *Plugin {
	return &Plugin{
		templates: make(map[string]*Template),
		deps:      NewGraph(),
		eval:      script.NewEvaluator(),
	}
}

// BeginBuild resets per-build state: the dependency graph is rebuilt
// from scratch, and relative imports resolve against the entry file.
func (p *Plugin) BeginBuild(entryFile string) {
	p.deps.Reset()
	p.file = entryFile
}

// Dependencies returns the sorted, transitively complete set of files
// the last build pulled in. The watcher replaces its watch set with
// exactly this set plus the entry file.
func (p *Plugin) Dependencies() []string {
	return p.deps.Files()
}

// Clone deep-copies the registration state. The dependency graph and
// evaluator are intentionally shared.
func (p *Plugin) Clone() emitter.Plugin {
	templates := make(map[string]*Template, len(p.templates))
	for name, t := range p.templates {
		templates[name] = t
	}
	return &Plugin{
		templates: templates,
		deps:      p.deps,
		eval:      p.eval,
		file:      p.file,
	}
}

// ShouldEmit claims every node whose name carries the command prefix.
// Registration and file commands need the mutable pass; everything
// else renders read-only.
func (p *Plugin) ShouldEmit(node *kdl.Node, e *emitter.Emitter) emitter.EmitStatus {
	cmd, ok := strings.CutPrefix(node.Name, commandPrefix)
	if !ok {
		return emitter.StatusSkip
	}
	switch cmd {
	case "template", "import", "include":
		return emitter.StatusEmitMut
	default:
		return emitter.StatusEmit
	}
}

// EmitNode handles the read-only commands.
func (p *Plugin) EmitNode(node *kdl.Node, ctx *emitter.Context) error {
	switch cmd := strings.TrimPrefix(node.Name, commandPrefix); cmd {
	case "for":
		return p.emitFor(node, ctx)
	case "debug":
		return p.emitDebug(ctx)
	case childrenMarker:
		return emitter.Errorf("@children is only valid inside a template body")
	case "params":
		return emitter.Errorf("@params is only valid as the first child of a @template")
	default:
		return p.instantiate(cmd, node, ctx)
	}
}

// EmitNodeMut handles the commands that register state or touch the
// file system.
func (p *Plugin) EmitNodeMut(node *kdl.Node, ctx *emitter.Context) error {
	switch cmd := strings.TrimPrefix(node.Name, commandPrefix); cmd {
	case "template":
		return p.register(node, ctx)
	case "import":
		return p.emitImport(node, ctx)
	case "include":
		return p.emitInclude(node, ctx)
	default:
		return p.EmitNode(node, ctx)
	}
}

// emitDebug renders the current environment as a <pre>/<code> block.
// Diagnostic only.
func (p *Plugin) emitDebug(ctx *emitter.Context) error {
	e := ctx.Emitter
	names := e.Vars.Names()

	var sb strings.Builder
	sb.WriteString(ctx.Indent)
	sb.WriteString("<pre><code>")
	for _, name := range names {
		val, _ := e.Vars.Get(name)
		sb.WriteString("\n")
		sb.WriteString(ctx.Indent)
		sb.WriteString(html.EscapeString(name + " = " + val))
	}
	sb.WriteString("\n")
	sb.WriteString(ctx.Indent)
	sb.WriteString("</code></pre>")
	if _, err := io.WriteString(ctx.Writer, sb.String()); err != nil {
		return err
	}
	return e.WriteLine(ctx.Writer)
}
