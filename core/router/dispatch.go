package router

import (
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/http"
	"github.com/searchktools/tmplserve/core/mime"
)

// Outcome names the path a dispatched request took.
type Outcome string

const (
	OutcomeHook      Outcome = "hook"
	OutcomeFile      Outcome = "file"
	OutcomeTemplate  Outcome = "template"
	OutcomeDirectory Outcome = "directory"
	OutcomeUnmapped  Outcome = "unmapped"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeError     Outcome = "render_error"
)

// Hooks are the application callbacks around the mapping table.
type Hooks struct {
	// OnRequest runs first; returning true means the request is handled.
	OnRequest func(ctx *http.Context) bool

	// OnUnmapped handles requests no mapping matched.
	OnUnmapped func(ctx *http.Context)

	// OnNotFound populates the not-found response. The status is preset to 404.
	OnNotFound func(ctx *http.Context)
}

// Renderer renders template sources into w.
type Renderer interface {
	Render(w io.Writer, src []byte, ctx *http.Context) error
}

// Dispatcher turns a prepared request into a response body and MIME type.
type Dispatcher struct {
	Table     *Table
	Files     fscache.FS
	Templates Renderer
	Hooks     Hooks
}

// Dispatch runs the request hook, then the first matching mapping, then
// the unmapped or not-found handler.
func (d *Dispatcher) Dispatch(ctx *http.Context) Outcome {
	if d.Hooks.OnRequest != nil && d.Hooks.OnRequest(ctx) {
		return OutcomeHook
	}

	if d.Table != nil {
		if m, ok := d.Table.Lookup(ctx.URI.Page); ok {
			switch m.Kind {
			case File:
				return d.serveFile(ctx, m)
			case Template:
				return d.serveTemplate(ctx, m)
			case Directory:
				return d.serveDirectory(ctx, m)
			}
		}
	}

	if d.Hooks.OnUnmapped != nil {
		d.Hooks.OnUnmapped(ctx)
		return OutcomeUnmapped
	}
	return d.NotFound(ctx)
}

// NotFound resets the response to 404 and runs the not-found handler.
func (d *Dispatcher) NotFound(ctx *http.Context) Outcome {
	ctx.SetStatus(404, "")
	ctx.SetBody("", nil)

	if d.Hooks.OnNotFound != nil {
		d.Hooks.OnNotFound(ctx)
	} else {
		DefaultNotFound(ctx)
	}
	return OutcomeNotFound
}

// DefaultNotFound writes a minimal 404 page.
func DefaultNotFound(ctx *http.Context) {
	ctx.SetStatus(404, "")
	ctx.MimeType = "text/html; charset=utf-8"
	ctx.WriteString("<h1>404 Not found</h1>")
}

func (d *Dispatcher) files() fscache.FS {
	if d.Files == nil {
		return fscache.OS{}
	}
	return d.Files
}

func (d *Dispatcher) serveFile(ctx *http.Context, m *Mapping) Outcome {
	data, err := d.files().ReadFile(m.Target)
	if err != nil {
		log.Printf("[mapping] warning: failed to read '%s': %v", m.Target, err)
		return d.NotFound(ctx)
	}

	mt := m.MimeType
	if mt == "" {
		mt = mime.Detect(m.Target, data)
	}
	ctx.SetBody(mt, data)
	return OutcomeFile
}

func (d *Dispatcher) serveTemplate(ctx *http.Context, m *Mapping) Outcome {
	src, err := d.files().ReadFile(m.Target)
	if err != nil {
		log.Printf("[mapping] warning: failed to read '%s': %v", m.Target, err)
		return d.NotFound(ctx)
	}
	if d.Templates == nil {
		log.Printf("[mapping] warning: no template renderer for '%s'", m.Target)
		return d.NotFound(ctx)
	}

	ctx.MimeType = m.MimeType
	if err := d.Templates.Render(ctx, src, ctx); err != nil {
		log.Printf("[template] warning: %s: %v", m.Target, err)
		ctx.SetStatus(500, "")
		ctx.SetBody("text/html; charset=utf-8", []byte("<h1>500 Internal Server Error</h1>"))
		return OutcomeError
	}
	return OutcomeTemplate
}

// serveDirectory joins the part of the page below the route onto the
// target. The joined path must stay inside the target and name a regular
// file; anything else is not found.
func (d *Dispatcher) serveDirectory(ctx *http.Context, m *Mapping) Outcome {
	rest := strings.TrimPrefix(ctx.URI.Page, m.Route)
	root := filepath.Clean(m.Target)
	path := filepath.Join(root, filepath.FromSlash(rest))

	if !within(root, path) {
		log.Printf("[mapping] warning: '%s' escapes '%s'", path, root)
		return d.NotFound(ctx)
	}

	info, err := d.files().Stat(path)
	if err != nil {
		log.Printf("[mapping] warning: failed to stat '%s': %v", path, err)
		return d.NotFound(ctx)
	}
	if !info.Mode().IsRegular() {
		log.Printf("[mapping] ignoring request for '%s': not a regular file", path)
		return d.NotFound(ctx)
	}

	data, err := d.files().ReadFile(path)
	if err != nil {
		log.Printf("[mapping] warning: failed to read '%s': %v", path, err)
		return d.NotFound(ctx)
	}

	mt := m.MimeType
	if mt == "" {
		mt = mime.Detect(ctx.URI.Page, data)
	}
	ctx.SetBody(mt, data)
	return OutcomeDirectory
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
