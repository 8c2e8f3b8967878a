// Package template renders the markup language served by Template mappings.
//
// A template is a sequence of nodes separated by optional whitespace:
//
//	[text]                      escaped text, newline becomes <br>
//	tag attr="value" ...;       empty element (link, br, meta, input stay unclosed)
//	tag attr="value" { nodes }  element with nested nodes
//	tag attr="value" [text]     element with a text body
//	call name;                  invoke a registered stream function
//	include "path";             render another template file in place
//	write "literal";            emit literal unescaped
//	read "key", "default";      escaped request variable
//	param "name", "default";    escaped query parameter
package template

import (
	"io"
	"log"
	"os"

	"github.com/valyala/bytebufferpool"

	"github.com/searchktools/tmplserve/core/arena"
	"github.com/searchktools/tmplserve/core/http"
)

// MaxIncludeDepth bounds nested includes so a self-including file fails
// instead of exhausting the stack.
const MaxIncludeDepth = 32

// FileSource loads template files for include and RenderFile.
type FileSource interface {
	ReadFile(name string) ([]byte, error)
}

type osFiles struct{}

func (osFiles) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Engine renders templates against a request context. The zero value
// reads files from the OS and knows no streams.
type Engine struct {
	Streams *Registry
	Files   FileSource
}

// New creates an engine
func New(streams *Registry, files FileSource) *Engine {
	return &Engine{Streams: streams, Files: files}
}

func (e *Engine) files() FileSource {
	if e.Files == nil {
		return osFiles{}
	}
	return e.Files
}

// Render evaluates src and writes the output to w as it is produced.
// On error the output written so far is not retracted.
func (e *Engine) Render(w io.Writer, src []byte, ctx *http.Context) error {
	if ctx == nil {
		ctx = http.NewContext(arena.New(arena.DefaultSize))
	}
	r := &renderer{e: e, w: w, ctx: ctx, src: string(src)}
	return r.nodes(false)
}

// RenderString renders src into a single string.
func (e *Engine) RenderString(src []byte, ctx *http.Context) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	err := e.Render(buf, src, ctx)
	return buf.String(), err
}

// RenderFile reads the template at path through the engine's file source
// and renders it to w.
func (e *Engine) RenderFile(w io.Writer, path string, ctx *http.Context) error {
	src, err := e.files().ReadFile(path)
	if err != nil {
		return err
	}
	return e.Render(w, src, ctx)
}

// LoadTemplate renders the file at path to a string. A missing file or a
// failed render is logged and yields what was produced, possibly nothing.
func (e *Engine) LoadTemplate(path string, ctx *http.Context) string {
	src, err := e.files().ReadFile(path)
	if err != nil {
		log.Printf("[template] warning: failed to load template %q: %v", path, err)
		return ""
	}
	out, err := e.RenderString(src, ctx)
	if err != nil {
		log.Printf("[template] warning: %s: %v", path, err)
	}
	return out
}
