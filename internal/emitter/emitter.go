// Package emitter turns a parsed node-tree document into an HTML text
// stream. The emitter walks sibling nodes recursively, maintains a
// scoped copy-on-write variable environment, and dispatches nodes
// through an ordered plugin list before falling back to plain HTML
// tag emission.
package emitter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/okubit/humid/internal/kdl"
)

// voidTags are HTML elements that never carry children. !DOCTYPE is
// not a tag at all, but it emits like one.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
	"!DOCTYPE": true,
}

const defaultIndent = 4

// Builder configures and creates Emitters. Re-use one builder across
// builds; call Build once per build for a fresh emitter.
type Builder struct {
	indent  int
	follow  bool
	plugins []pluginSlot
	logger  *slog.Logger
}

// NewBuilder returns a builder with the default indentation of 4.
func NewBuilder() *Builder {
	return &Builder{indent: defaultIndent, logger: slog.Default()}
}

// Indent sets the number of spaces per nesting level. Implies pretty
// output.
func (b *Builder) Indent(n int) *Builder {
	b.indent = n
	return b
}

// Minify disables indentation and newlines.
func (b *Builder) Minify() *Builder {
	b.indent = 0
	return b
}

// FollowFormatting makes the emitter reproduce each node's source
// indentation instead of computing its own. Best effort.
func (b *Builder) FollowFormatting(on bool) *Builder {
	b.follow = on
	return b
}

// AddPlugin appends a plugin. Plugins are consulted in registration
// order.
func (b *Builder) AddPlugin(p Plugin) *Builder {
	b.plugins = append(b.plugins, pluginSlot{impl: p})
	return b
}

// Logger sets the logger used for emitter diagnostics.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build creates a fresh Emitter. The builder's plugin instances are
// shared with the emitter and cloned on first mutation, so one build
// never dirties the prototypes for the next.
func (b *Builder) Build() *Emitter {
	return &Emitter{
		indentWidth: b.indent,
		follow:      b.follow,
		plugins:     forkSlots(b.plugins),
		logger:      b.logger,
		Vars:        NewVars(),
		contentWarn: &sync.Once{},
	}
}

// Emitter walks a document and writes HTML. One emitter exists per
// recursion level; forks share plugins structurally and fork the
// variable environment.
type Emitter struct {
	indentWidth int
	follow      bool
	level       int
	plugins     []pluginSlot
	logger      *slog.Logger
	contentWarn *sync.Once

	// Vars is the current scope's variable environment.
	Vars Vars
}

// Fork returns an emitter at the same depth with a forked environment,
// for plugins that emit a rewritten subtree in place of a node.
func (e *Emitter) Fork() *Emitter {
	clone := *e
	clone.Vars = e.Vars.Fork()
	clone.plugins = forkSlots(e.plugins)
	return &clone
}

// Sub returns a fork one indentation level deeper, used to emit a
// node's children.
func (e *Emitter) Sub() *Emitter {
	clone := e.Fork()
	clone.level++
	return clone
}

// IsPretty reports whether the emitter writes newlines and
// indentation.
func (e *Emitter) IsPretty() bool { return e.indentWidth > 0 || e.follow }

// Logger returns the emitter's diagnostic logger.
func (e *Emitter) Logger() *slog.Logger { return e.logger }

// WriteLine writes a newline if in pretty mode.
func (e *Emitter) WriteLine(w io.Writer) error {
	if !e.IsPretty() {
		return nil
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (e *Emitter) nodeIndent(node *kdl.Node) string {
	if e.follow {
		return node.Indent
	}
	return strings.Repeat(" ", e.level*e.indentWidth)
}

// Render performs one top-level build: it walks the document and then
// resets the variable environment so the emitter can be reused for an
// independent build.
func (e *Emitter) Render(doc *kdl.Document, w io.Writer) error {
	err := e.Emit(doc, w)
	e.Vars.Clear()
	return err
}

// Emit walks a document's sibling nodes in order, dispatching each to
// variable binding, text emission, the plugin list, or plain tag
// emission. Variable bindings stay visible to later siblings in the
// same scope.
func (e *Emitter) Emit(doc *kdl.Document, w io.Writer) error {
	for _, node := range doc.Nodes {
		indent := e.nodeIndent(node)
		name := node.Name

		// variable binding node, e.g. `$title "Hello"`
		if strings.HasPrefix(name, "$") && len(name) > 1 {
			if val, ok := node.Arg(0); ok {
				e.Vars.Insert(name[1:], e.Vars.ExpandValue(val))
				continue
			}
		}

		// raw text, written verbatim
		if name == "raw" {
			if val, ok := node.Arg(0); ok {
				if err := e.emitRawNode(indent, val, w); err != nil {
					return err
				}
				continue
			}
		}

		// escaped text; "content" is the deprecated spelling
		if name == "text" || name == "content" {
			if val, ok := node.Arg(0); ok {
				if name == "content" {
					e.contentWarn.Do(func() {
						e.logger.Warn("the 'content' node is deprecated, use 'text'")
					})
				}
				if err := e.EmitTextNode(indent, val, w); err != nil {
					return err
				}
				continue
			}
		}

		claimed, err := e.callPlugins(node, indent, w)
		if err != nil {
			return err
		}
		if claimed {
			continue
		}

		if err := e.EmitTag(node, name, indent, w); err != nil {
			return err
		}
	}
	return nil
}

// callPlugins runs the two-phase dispatch: the first plugin that does
// not skip the node wins. StatusEmit renders through the shared
// plugin; StatusEmitMut first ensures the slot owns its plugin
// privately, then renders through the owned copy.
func (e *Emitter) callPlugins(node *kdl.Node, indent string, w io.Writer) (bool, error) {
	needsMut := -1
	for i := range e.plugins {
		switch e.plugins[i].impl.ShouldEmit(node, e) {
		case StatusSkip:
			continue
		case StatusEmit:
			ctx := &Context{Indent: indent, Writer: w, Emitter: e}
			return true, e.plugins[i].impl.EmitNode(node, ctx)
		case StatusEmitMut:
			needsMut = i
		}
		break
	}
	if needsMut < 0 {
		return false, nil
	}
	slot := &e.plugins[needsMut]
	if slot.shared {
		slot.impl = slot.impl.Clone()
		slot.shared = false
	}
	ctx := &Context{Indent: indent, Writer: w, Emitter: e}
	return true, slot.impl.EmitNodeMut(node, ctx)
}

// EmitTag renders one node as an HTML element named name, using the
// node's entries for attributes and inline text and its children
// block for content.
func (e *Emitter) EmitTag(node *kdl.Node, name, indent string, w io.Writer) error {
	isVoid := voidTags[name]
	if isVoid && node.HasChildren() {
		return Errorf("%s: void element cannot have children", name)
	}

	// Inline content is either a keyed text=/content= entry, or (with
	// no children block) a trailing positional entry.
	var inline *kdl.Value
	entries := node.Entries
	skipLast := false
	for i := range entries {
		if entries[i].Name == "text" || entries[i].Name == "content" {
			if node.HasChildren() {
				return Errorf("%s: node cannot have both inline text and children", name)
			}
			inline = &entries[i].Value
		}
	}
	if inline == nil && !isVoid && !node.HasChildren() && len(entries) > 0 && entries[len(entries)-1].IsPositional() {
		inline = &entries[len(entries)-1].Value
		skipLast = true
	}

	var sb strings.Builder
	sb.WriteString(indent)
	sb.WriteByte('<')
	sb.WriteString(name)
	for i, entry := range entries {
		if entry.Name == "text" || entry.Name == "content" {
			continue
		}
		if skipLast && i == len(entries)-1 {
			continue
		}
		val := e.Vars.ExpandValue(entry.Value)
		if val == "" {
			// an empty keyed value suppresses the attribute; an empty
			// positional fragment has nothing to contribute either
			continue
		}
		sb.WriteByte(' ')
		if entry.IsPositional() {
			sb.WriteString(val)
		} else {
			sb.WriteString(entry.Name)
			sb.WriteString(`="`)
			sb.WriteString(html.EscapeString(val))
			sb.WriteByte('"')
		}
	}
	sb.WriteByte('>')
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if isVoid {
		return e.WriteLine(w)
	}

	if inline != nil {
		if _, err := io.WriteString(w, html.EscapeString(e.Vars.ExpandValue(*inline))); err != nil {
			return err
		}
	} else if node.HasChildren() {
		if err := e.WriteLine(w); err != nil {
			return err
		}
		if err := e.Sub().Emit(node.Children, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, indent); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "</%s>", name); err != nil {
		return err
	}
	return e.WriteLine(w)
}

// EmitTextNode writes HTML-escaped, variable-expanded text content.
func (e *Emitter) EmitTextNode(indent string, content kdl.Value, w io.Writer) error {
	if _, err := io.WriteString(w, indent+html.EscapeString(e.Vars.ExpandValue(content))); err != nil {
		return err
	}
	return e.WriteLine(w)
}

func (e *Emitter) emitRawNode(indent string, content kdl.Value, w io.Writer) error {
	if _, err := io.WriteString(w, indent+e.Vars.ExpandValue(content)); err != nil {
		return err
	}
	return e.WriteLine(w)
}
