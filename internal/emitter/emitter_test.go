package emitter

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okubit/humid/internal/kdl"
)

func render(t *testing.T, b *Builder, input string) string {
	t.Helper()
	doc, err := kdl.Parse(input)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, b.Build().Render(doc, &buf))
	return buf.String()
}

func renderErr(t *testing.T, b *Builder, input string) error {
	t.Helper()
	doc, err := kdl.Parse(input)
	require.NoError(t, err)
	return b.Build().Render(doc, &bytes.Buffer{})
}

func TestEmitBasicDocument(t *testing.T) {
	got := render(t, NewBuilder(), `
html {
    body {
        h1 { text "Title" }
    }
}`)
	want := `<html>
    <body>
        <h1>
            Title
        </h1>
    </body>
</html>
`
	assert.Equal(t, want, got)
}

func TestEmitMinified(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `
html {
    body {
        h1 { text "Title" }
    }
}`)
	assert.Equal(t, "<html><body><h1>Title</h1></body></html>", got)
}

func TestEmitInlineText(t *testing.T) {
	// A trailing positional entry with no children is inline content.
	got := render(t, NewBuilder().Minify(), `p "Hello, world!"`)
	assert.Equal(t, "<p>Hello, world!</p>", got)
}

func TestEmitInlineTextIsEscaped(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `p "<b>&\"bold\"</b>"`)
	assert.Equal(t, "<p>&lt;b&gt;&amp;&#34;bold&#34;&lt;/b&gt;</p>", got)
}

func TestEmitAttributes(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `a href="/home" class="nav" "Home"`)
	assert.Equal(t, `<a href="/home" class="nav">Home</a>`, got)
}

func TestEmitEmptyAttributeIsOmitted(t *testing.T) {
	// $missing expands to "", so the keyed attribute disappears.
	got := render(t, NewBuilder().Minify(), `input type="text" disabled="$missing"`)
	assert.Equal(t, `<input type="text">`, got)
}

func TestEmitPositionalFragmentVerbatim(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `div "data-x=\"1\"" { span "hi" }`)
	assert.Equal(t, `<div data-x="1"><span>hi</span></div>`, got)
}

func TestEmitDoctype(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `!DOCTYPE html`)
	assert.Equal(t, "<!DOCTYPE html>", got)
}

func TestEmitVoidElements(t *testing.T) {
	got := render(t, NewBuilder(), "br\nimg src=\"x.png\"\nmeta charset=\"utf-8\"")
	want := `<br>
<img src="x.png">
<meta charset="utf-8">
`
	assert.Equal(t, want, got)
}

func TestVoidElementWithChildrenIsError(t *testing.T) {
	for name := range voidTags {
		err := renderErr(t, NewBuilder(), name+` { span "nope" }`)
		require.Error(t, err, "void element %q must reject children", name)
		var uerr *UserError
		assert.ErrorAs(t, err, &uerr)
	}
}

func TestInlineTextWithChildrenIsError(t *testing.T) {
	err := renderErr(t, NewBuilder(), `p text="hi" { span "child" }`)
	require.Error(t, err)
	var uerr *UserError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Message, "inline text")
}

func TestVariableBindingAcrossSiblings(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `
$title "My Page"
h1 "$title"
p "Still $title"`)
	assert.Equal(t, "<h1>My Page</h1><p>Still My Page</p>", got)
}

func TestVariableScopeIsolation(t *testing.T) {
	// A binding made inside a child block must not leak to the
	// parent's later siblings.
	got := render(t, NewBuilder().Minify(), `
div {
    $inner "secret"
    span "$inner"
}
p "after: $inner"`)
	assert.Equal(t, "<div><span>secret</span></div><p>after: </p>", got)
}

func TestRawTextIsNotEscaped(t *testing.T) {
	got := render(t, NewBuilder().Minify(), `raw "<!-- keep --><b>raw</b>"`)
	assert.Equal(t, "<!-- keep --><b>raw</b>", got)
}

func TestContentAliasWarnsOnce(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	got := render(t, NewBuilder().Minify().Logger(logger), `
div { content "a" }
div { content "b" }`)
	assert.Equal(t, "<div>a</div><div>b</div>", got)
	assert.Equal(t, 1, strings.Count(logBuf.String(), "deprecated"),
		"the content alias must warn exactly once per build")
}

func TestEmitterReuseResetsEnvironment(t *testing.T) {
	b := NewBuilder().Minify()
	em := b.Build()

	doc1, err := kdl.Parse(`$x "one"; p "$x"`)
	require.NoError(t, err)
	var buf1 bytes.Buffer
	require.NoError(t, em.Render(doc1, &buf1))
	assert.Equal(t, "<p>one</p>", buf1.String())

	doc2, err := kdl.Parse(`p "$x"`)
	require.NoError(t, err)
	var buf2 bytes.Buffer
	require.NoError(t, em.Render(doc2, &buf2))
	assert.Equal(t, "<p></p>", buf2.String(), "bindings must not survive between builds")
}

func TestEmitDeterminism(t *testing.T) {
	b := NewBuilder()
	input := `
!DOCTYPE html
html {
    head { meta charset="utf-8"; title "t" }
    body {
        $greeting "hi"
        p class="x" "msg: $greeting"
        ul { li "one"; li "two" }
    }
}`
	first := render(t, b, input)
	second := render(t, b, input)
	assert.Equal(t, first, second, "re-emitting the same document must be byte-identical")
}

func TestFollowFormatting(t *testing.T) {
	got := render(t, NewBuilder().FollowFormatting(true), "div {\n  span \"x\"\n}")
	assert.Equal(t, "<div>\n  <span>x</span>\n</div>\n", got)
}

// shouter uppercases every element name it sees; it exercises the
// read-only plugin path.
type shouter struct{}

func (s *shouter) Clone() Plugin { return &shouter{} }

func (s *shouter) ShouldEmit(node *kdl.Node, e *Emitter) EmitStatus {
	if strings.HasPrefix(node.Name, "$") || node.Name == "text" || node.Name == "raw" {
		return StatusSkip
	}
	return StatusEmit
}

func (s *shouter) EmitNode(node *kdl.Node, ctx *Context) error {
	return ctx.Emitter.EmitTag(node, strings.ToUpper(node.Name), ctx.Indent, ctx.Writer)
}

func (s *shouter) EmitNodeMut(node *kdl.Node, ctx *Context) error {
	return s.EmitNode(node, ctx)
}

func TestPluginEmit(t *testing.T) {
	got := render(t, NewBuilder().Minify().AddPlugin(&shouter{}), `p "loud"`)
	assert.Equal(t, "<P>loud</P>", got)
}

// recorder registers the names of nodes it mutated on; it exercises
// the copy-on-write mutate path.
type recorder struct {
	seen map[string]bool
}

func newRecorder() *recorder { return &recorder{seen: map[string]bool{}} }

func (r *recorder) Clone() Plugin {
	clone := newRecorder()
	for k := range r.seen {
		clone.seen[k] = true
	}
	return clone
}

func (r *recorder) ShouldEmit(node *kdl.Node, e *Emitter) EmitStatus {
	if strings.HasPrefix(node.Name, "record-") {
		return StatusEmitMut
	}
	return StatusSkip
}

func (r *recorder) EmitNode(node *kdl.Node, ctx *Context) error { return nil }

func (r *recorder) EmitNodeMut(node *kdl.Node, ctx *Context) error {
	r.seen[node.Name] = true
	return nil
}

func TestPluginMutationDoesNotReachPrototype(t *testing.T) {
	proto := newRecorder()
	b := NewBuilder().Minify().AddPlugin(proto)

	got := render(t, b, `record-one; div "kept"`)
	assert.Equal(t, `<div>kept</div>`, got)
	assert.Empty(t, proto.seen, "builds must clone the builder's plugin before mutating it")
}

func TestPluginMutationDoesNotReachParentFork(t *testing.T) {
	proto := newRecorder()
	b := NewBuilder().Minify().AddPlugin(proto)
	em := b.Build()

	// Mutate on a fork: the original emitter's slot must keep the
	// unmutated plugin.
	fork := em.Fork()
	doc, err := kdl.Parse(`record-deep`)
	require.NoError(t, err)
	require.NoError(t, fork.Emit(doc, &bytes.Buffer{}))

	forkPlugin := fork.plugins[0].impl.(*recorder)
	assert.True(t, forkPlugin.seen["record-deep"])

	parentPlugin := em.plugins[0].impl.(*recorder)
	assert.Empty(t, parentPlugin.seen, "a fork's mutation must not be visible to its parent")
}

func TestEmitStatusString(t *testing.T) {
	assert.Equal(t, "skip", StatusSkip.String())
	assert.Equal(t, "emit", StatusEmit.String())
	assert.Equal(t, "emit-mut", StatusEmitMut.String())
}
