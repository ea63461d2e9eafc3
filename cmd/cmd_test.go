package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okubit/humid/internal/config"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildFileRendersDocument(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "index.kdl", `
$title "Humid"
html {
    body {
        h1 "$title"
    }
}
`)
	cfg := config.Default()
	cfg.Build.Minify = true
	b := newBuilder(cfg, slog.Default())

	out, err := b.buildFile(entry)
	require.NoError(t, err)
	assert.Equal(t, "<html><body><h1>Humid</h1></body></html>", string(out))
}

func TestBuildFileWithImports(t *testing.T) {
	dir := t.TempDir()
	lib := write(t, dir, "lib.kdl", `
@template "page" {
    @params title="untitled"
    main {
        h1 "$title"
    }
}
`)
	entry := write(t, dir, "index.kdl", `
@import "lib.kdl"
@page title="Docs"
`)
	cfg := config.Default()
	cfg.Build.Minify = true
	b := newBuilder(cfg, slog.Default())

	out, err := b.buildFile(entry)
	require.NoError(t, err)
	assert.Equal(t, "<main><h1>Docs</h1></main>", string(out))

	deps := b.dependencies(entry)
	assert.Contains(t, deps, lib)
	assert.Contains(t, deps, entry)
}

func TestBuilderIsReusableAcrossBuilds(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "index.kdl", `
$x "first"
p "$x"
`)
	cfg := config.Default()
	cfg.Build.Minify = true
	b := newBuilder(cfg, slog.Default())

	out, err := b.buildFile(entry)
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p>", string(out))

	write(t, dir, "index.kdl", `p "$x"`)
	out, err = b.buildFile(entry)
	require.NoError(t, err)
	// the previous build's bindings must not leak into this one
	assert.Equal(t, "<p></p>", string(out))
}

func TestBuildFileReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, dir, "broken.kdl", `div {`)

	b := newBuilder(config.Default(), slog.Default())
	_, err := b.buildFile(entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestFailedRebuildKeepsImportTracked(t *testing.T) {
	dir := t.TempDir()
	lib := write(t, dir, "lib.kdl", `@template "page" { p "v1" }`)
	entry := write(t, dir, "index.kdl", `
@import "lib.kdl"
@page
`)
	cfg := config.Default()
	cfg.Build.Minify = true
	b := newBuilder(cfg, slog.Default())

	_, err := b.buildFile(entry)
	require.NoError(t, err)
	require.Contains(t, b.dependencies(entry), lib)

	// break the imported file: the rebuild fails, but the file must
	// remain a dependency so fixing it can trigger the next rebuild
	write(t, dir, "lib.kdl", `@template "page" {`)
	_, err = b.buildFile(entry)
	require.Error(t, err)
	assert.Contains(t, b.dependencies(entry), lib)
}

func TestWatchLoopRecoversAfterBrokenImport(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "lib.kdl", `@template "page" { p "v1" }`)
	entry := write(t, dir, "index.kdl", `
@import "lib.kdl"
@page
`)
	cfg := config.Default()
	cfg.Build.Minify = true
	b := newBuilder(cfg, slog.Default())

	results := make(chan error, 16)
	rebuild := func() bool {
		_, err := b.buildFile(entry)
		results <- err
		return err == nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watchLoop(ctx, 20, b, entry, rebuild)
	}()

	next := func() error {
		t.Helper()
		select {
		case err := <-results:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("no rebuild observed")
			return nil
		}
	}

	require.NoError(t, next())
	// let the loop establish the initial watch set
	time.Sleep(200 * time.Millisecond)

	write(t, dir, "lib.kdl", `@template "page" {`)
	require.Error(t, next())

	// the broken import must still be watched: fixing it rebuilds
	write(t, dir, "lib.kdl", `@template "page" { p "v2" }`)
	require.NoError(t, next())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site", "index.html")
	require.NoError(t, writeOutput(path, []byte("<html></html>")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))
}
