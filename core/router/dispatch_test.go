package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/searchktools/tmplserve/core/arena"
	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/http"
	"github.com/searchktools/tmplserve/core/template"
)

func request(target string) *http.Context {
	ctx := http.NewContext(arena.New(4096))
	ctx.Request.Target = target
	ctx.Prepare()
	return ctx
}

func newDispatcher(table *Table) *Dispatcher {
	return &Dispatcher{
		Table:     table,
		Files:     fscache.OS{},
		Templates: template.New(template.NewRegistry(), fscache.OS{}),
	}
}

func body(ctx *http.Context) string {
	return string(ctx.Response.Bytes())
}

func TestDispatchFileBeforeDirectory(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "file-a.txt"), "from file mapping")
	mkfile(t, filepath.Join(dir, "root", "a"), "from directory mapping")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/a", Target: filepath.Join(dir, "file-a.txt")})
	table.Register(Mapping{Route: "/", Target: filepath.Join(dir, "root")})
	d := newDispatcher(table)

	ctx := request("/a")
	if out := d.Dispatch(ctx); out != OutcomeFile {
		t.Fatalf("outcome = %s, want file", out)
	}
	if body(ctx) != "from file mapping" {
		t.Errorf("body = %q", body(ctx))
	}

	// Reversed registration order: the directory wins.
	table = NewTable(nil)
	table.Register(Mapping{Route: "/", Target: filepath.Join(dir, "root")})
	table.Register(Mapping{Route: "/a", Target: filepath.Join(dir, "file-a.txt")})
	d = newDispatcher(table)

	ctx = request("/a")
	if out := d.Dispatch(ctx); out != OutcomeDirectory {
		t.Fatalf("outcome = %s, want directory", out)
	}
	if body(ctx) != "from directory mapping" {
		t.Errorf("body = %q", body(ctx))
	}
}

func TestDispatchDirectory(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "public", "css", "site.css"), "body{}")
	mkfile(t, filepath.Join(dir, "public", "notes"), "plain words")
	mkfile(t, filepath.Join(dir, "secret"), "top secret")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/public", Target: filepath.Join(dir, "public")})
	d := newDispatcher(table)

	ctx := request("/public/css/site.css")
	if out := d.Dispatch(ctx); out != OutcomeDirectory {
		t.Fatalf("outcome = %s", out)
	}
	if body(ctx) != "body{}" || ctx.MimeType != "text/css; charset=utf-8" {
		t.Errorf("got %q as %q", body(ctx), ctx.MimeType)
	}

	ctx = request("/public/notes")
	d.Dispatch(ctx)
	if !strings.HasPrefix(ctx.MimeType, "text/plain") {
		t.Errorf("sniffed MIME = %q, want text/plain", ctx.MimeType)
	}

	notFound := []string{
		"/public/css",         // directory
		"/public/missing.txt", // stat failure
		"/public/../secret",   // resolved to /secret, unmapped
		"/public/%2e%2e/secret",
	}
	for _, target := range notFound {
		ctx := request(target)
		out := d.Dispatch(ctx)
		if out != OutcomeNotFound || ctx.Response.Status != 404 {
			t.Errorf("%s: outcome %s status %d, want not found", target, out, ctx.Response.Status)
		}
		if strings.Contains(body(ctx), "top secret") {
			t.Errorf("%s: leaked file outside target", target)
		}
	}
}

func TestDispatchDirectoryContainment(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "public", "ok.txt"), "ok")
	mkfile(t, filepath.Join(dir, "secret"), "top secret")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/", Target: filepath.Join(dir, "public")})
	d := newDispatcher(table)

	// A page that bypassed URI resolution.
	ctx := http.NewContext(arena.New(4096))
	ctx.URI.Page = "/../secret"

	if out := d.Dispatch(ctx); out != OutcomeNotFound {
		t.Errorf("outcome = %s, want not found", out)
	}
	if strings.Contains(body(ctx), "top secret") {
		t.Error("leaked file outside target")
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, path string
		want       bool
	}{
		{"/srv/public", "/srv/public", true},
		{"/srv/public", "/srv/public/a/b", true},
		{"/srv/public", "/srv/public/..a", true},
		{"/srv/public", "/srv/secret", false},
		{"/srv/public", "/srv/publicity", false},
		{"/srv/public", "/etc/passwd", false},
	}
	for _, tt := range tests {
		if got := within(tt.root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestDispatchTemplate(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "index.tmpl"), `h1{read "title", "Untitled";} p{param "q";}`)
	mkfile(t, filepath.Join(dir, "broken.tmpl"), `div{`)

	table := NewTable(nil)
	table.Register(Mapping{Route: "/", Target: filepath.Join(dir, "index.tmpl")})
	table.Register(Mapping{Route: "/broken", Target: filepath.Join(dir, "broken.tmpl")})
	d := newDispatcher(table)

	ctx := request("/?q=%3Cx%3E")
	ctx.SetVar("title", "Home")
	if out := d.Dispatch(ctx); out != OutcomeTemplate {
		t.Fatalf("outcome = %s", out)
	}
	if body(ctx) != "<h1>Home</h1><p>&lt;x&gt;</p>" {
		t.Errorf("body = %q", body(ctx))
	}
	if ctx.MimeType != "text/html" {
		t.Errorf("MimeType = %q, want text/html", ctx.MimeType)
	}

	ctx = request("/broken")
	if out := d.Dispatch(ctx); out != OutcomeError {
		t.Fatalf("outcome = %s, want render_error", out)
	}
	if ctx.Response.Status != 500 || strings.Contains(body(ctx), "<div>") {
		t.Errorf("status %d body %q, want generic 500 page", ctx.Response.Status, body(ctx))
	}
}

func TestDispatchMissingMappedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	mkfile(t, path, "x")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/gone", Target: path})
	os.Remove(path)

	ctx := request("/gone")
	if out := newDispatcher(table).Dispatch(ctx); out != OutcomeNotFound {
		t.Errorf("outcome = %s, want not found", out)
	}
}

func TestDispatchHooks(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "a.txt"), "mapped")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/a", Target: filepath.Join(dir, "a.txt")})

	d := newDispatcher(table)
	d.Hooks.OnRequest = func(ctx *http.Context) bool {
		if !ctx.IsRoute("/a") {
			return false
		}
		ctx.SetBody("text/plain", []byte("from hook"))
		return true
	}

	ctx := request("/a")
	if out := d.Dispatch(ctx); out != OutcomeHook || body(ctx) != "from hook" {
		t.Errorf("hook: outcome %s body %q", out, body(ctx))
	}

	// No unmapped hook: default not-found page.
	ctx = request("/nowhere")
	if out := d.Dispatch(ctx); out != OutcomeNotFound {
		t.Errorf("outcome = %s, want not found", out)
	}
	if ctx.Response.Status != 404 || ctx.Response.Message != "Not found" || body(ctx) == "" {
		t.Errorf("default not found: %d %q %q", ctx.Response.Status, ctx.Response.Message, body(ctx))
	}

	d.Hooks.OnNotFound = func(ctx *http.Context) {
		ctx.SetBody("text/plain", []byte("custom 404"))
	}
	ctx = request("/nowhere")
	d.Dispatch(ctx)
	if ctx.Response.Status != 404 || body(ctx) != "custom 404" {
		t.Errorf("custom not found: %d %q", ctx.Response.Status, body(ctx))
	}

	d.Hooks.OnUnmapped = func(ctx *http.Context) {
		ctx.SetBody("text/plain", []byte("unmapped"))
	}
	ctx = request("/nowhere")
	if out := d.Dispatch(ctx); out != OutcomeUnmapped || ctx.Response.Status != 200 {
		t.Errorf("unmapped: outcome %s status %d", out, ctx.Response.Status)
	}
}
