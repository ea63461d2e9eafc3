package template

import (
	"io"
	"os"
	"path/filepath"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
)

// resolvePath turns a command's path argument into an absolute path
// relative to the file currently being walked, and verifies it exists.
func (p *Plugin) resolvePath(cmd string, node *kdl.Node, ctx *emitter.Context) (string, error) {
	arg, ok := node.Arg(0)
	if !ok {
		return "", emitter.Errorf("%s: missing file path", cmd)
	}
	path := ctx.Emitter.Vars.ExpandValue(arg)
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(p.file), path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", emitter.Errorf("%s: cannot resolve %q: %v", cmd, path, err)
	}
	return path, nil
}

// emitInclude parses another file and emits it in place. The included
// file runs in the current scope, so its variable bindings and
// template registrations stay visible to later siblings.
func (p *Plugin) emitInclude(node *kdl.Node, ctx *emitter.Context) error {
	return p.walkFile("@include", node, ctx, ctx.Writer)
}

// emitImport parses another file and walks it with output discarded:
// only its side effects survive, which makes it the way to pull in a
// library of template definitions.
func (p *Plugin) emitImport(node *kdl.Node, ctx *emitter.Context) error {
	return p.walkFile("@import", node, ctx, io.Discard)
}

func (p *Plugin) walkFile(cmd string, node *kdl.Node, ctx *emitter.Context, w io.Writer) error {
	path, err := p.resolvePath(cmd, node, ctx)
	if err != nil {
		return err
	}

	if p.reaches(path, p.file) {
		return emitter.Errorf("%s: import cycle through %q", cmd, path)
	}

	// The edge is recorded before parsing so a file that fails to
	// parse stays in the dependency set and keeps being watched.
	p.deps.Add(p.file, path)

	src, err := os.ReadFile(path)
	if err != nil {
		return emitter.Errorf("%s: reading %q: %v", cmd, path, err)
	}
	doc, err := kdl.Parse(string(src))
	if err != nil {
		return emitter.Errorf("%s: parsing %q: %v", cmd, path, err)
	}

	// Nested imports inside the walked file resolve against it.
	prev := p.file
	p.file = path
	defer func() { p.file = prev }()

	return ctx.Emitter.Emit(doc, w)
}

// reaches reports whether target is reachable from `from` through the
// dependency edges recorded so far. Walking into `from` while it can
// already reach the file being walked would recurse forever.
func (p *Plugin) reaches(from, target string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, p.deps.Imports(cur)...)
	}
	return false
}
