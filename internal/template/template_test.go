package template

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
)

func render(t *testing.T, p *Plugin, input string) string {
	t.Helper()
	doc, err := kdl.Parse(input)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, emitter.NewBuilder().Minify().AddPlugin(p).Build().Render(doc, &buf))
	return buf.String()
}

func renderErr(t *testing.T, p *Plugin, input string) error {
	t.Helper()
	doc, err := kdl.Parse(input)
	require.NoError(t, err)
	return emitter.NewBuilder().Minify().AddPlugin(p).Build().Render(doc, &bytes.Buffer{})
}

func TestTemplateWithDefaultParam(t *testing.T) {
	got := render(t, New(), `
@template "greet" {
    @params name="World"
    p "Hello, $name!"
}
@greet
@greet name="Rust"
`)
	assert.Equal(t, "<p>Hello, World!</p><p>Hello, Rust!</p>", got)
}

func TestTemplatePositionalArgs(t *testing.T) {
	got := render(t, New(), `
@template "pair" {
    p "$0 and $1"
}
@pair "salt" "pepper"
`)
	assert.Equal(t, "<p>salt and pepper</p>", got)
}

func TestTemplateNameProperty(t *testing.T) {
	got := render(t, New(), `
@template name="box" {
    div "inside"
}
@box
`)
	assert.Equal(t, "<div>inside</div>", got)
}

func TestTemplatePropsForwarding(t *testing.T) {
	// Keyed entries that are not declared parameters land on the root
	// element of a single-rooted template.
	got := render(t, New(), `
@template "btn" {
    button "Click"
}
@btn class="big" id="buy"
`)
	assert.Equal(t, `<button class="big" id="buy">Click</button>`, got)
}

func TestTemplateDeclaredParamsExcludedFromProps(t *testing.T) {
	got := render(t, New(), `
@template "link" {
    @params href
    a href="$href" "go"
}
@link href="/docs" target="_blank"
`)
	assert.Equal(t, `<a href="/docs" target="_blank">go</a>`, got)
}

func TestTemplateChildrenSplice(t *testing.T) {
	got := render(t, New(), `
@template "card" {
    div class="card" {
        @children
    }
}
@card {
    span "a"
    span "b"
}
`)
	assert.Equal(t, `<div class="card"><span>a</span><span>b</span></div>`, got)
}

func TestChildrenMarkerPushesDefaultAttributes(t *testing.T) {
	// Keyed entries on @children become attributes on each spliced
	// child unless the child already carries that attribute.
	got := render(t, New(), `
@template "list" {
    ul {
        @children class="item"
    }
}
@list {
    li "a"
    li class="own" "b"
}
`)
	assert.Equal(t, `<ul><li class="item">a</li><li class="own">b</li></ul>`, got)
}

func TestTemplateWithoutChildrenSupport(t *testing.T) {
	err := renderErr(t, New(), `
@template "plain" {
    p "static"
}
@plain {
    span "extra"
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
}

func TestTemplateCallWithChildrenMarkerIsError(t *testing.T) {
	err := renderErr(t, New(), `
@template "card" {
    div { @children }
}
@card {
    @children
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursion")
}

func TestUnknownTemplateIsError(t *testing.T) {
	err := renderErr(t, New(), `@nope`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestTemplateMustHaveChildren(t *testing.T) {
	err := renderErr(t, New(), `@template "empty"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have children")
}

func TestTemplateMustHaveName(t *testing.T) {
	err := renderErr(t, New(), `@template { p "x" }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestTemplateScopeIsolation(t *testing.T) {
	// Bindings made inside a template body stay inside it.
	got := render(t, New(), `
@template "shadow" {
    $secret "inner"
    p "$secret"
}
@shadow
p "$secret"
`)
	assert.Equal(t, "<p>inner</p><p></p>", got)
}

func TestTemplateRedefinitionWins(t *testing.T) {
	got := render(t, New(), `
@template "v" { p "one" }
@template "v" { p "two" }
@v
`)
	assert.Equal(t, "<p>two</p>", got)
}

func TestNestedRegistrationIsScoped(t *testing.T) {
	// Registering inside a child block must not leak to the parent
	// scope.
	err := renderErr(t, New(), `
div {
    @template "local" { p "x" }
    @local
}
@local
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestChildrenOutsideTemplateIsError(t *testing.T) {
	err := renderErr(t, New(), `@children`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inside a template")
}

func TestParamsOutsideTemplateIsError(t *testing.T) {
	err := renderErr(t, New(), `@params name="x"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@template")
}

func TestDebugDumpsEnvironment(t *testing.T) {
	got := render(t, New(), `
$title "Home"
$year "2026"
@debug
`)
	assert.Contains(t, got, "<pre><code>")
	assert.Contains(t, got, "title = Home")
	assert.Contains(t, got, "year = 2026")
}

func TestTemplateComposition(t *testing.T) {
	got := render(t, New(), `
@template "inner" {
    @params word="hi"
    em "$word"
}
@template "outer" {
    div {
        @inner word="yo"
    }
}
@outer
`)
	assert.Equal(t, "<div><em>yo</em></div>", got)
}
