package template

import (
	"fmt"
	"io"
	"log"

	"github.com/searchktools/tmplserve/core/http"
)

// renderer evaluates one template source in a single left-to-right pass.
// Output is written as soon as it is produced; a failed render leaves
// whatever was already written.
type renderer struct {
	e     *Engine
	w     io.Writer
	ctx   *http.Context
	src   string
	pos   int
	depth int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isIdent(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isVoid(tag string) bool {
	switch tag {
	case "link", "br", "meta", "input":
		return true
	}
	return false
}

func (r *renderer) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: r.pos, Msg: fmt.Sprintf(format, args...)}
}

func (r *renderer) eof() bool {
	return r.pos >= len(r.src)
}

func (r *renderer) skipSpace() {
	for r.pos < len(r.src) && isSpace(r.src[r.pos]) {
		r.pos++
	}
}

// name consumes an element or attribute name: identifier characters and '-'.
func (r *renderer) name() string {
	start := r.pos
	for r.pos < len(r.src) && (isIdent(r.src[r.pos]) || r.src[r.pos] == '-') {
		r.pos++
	}
	return r.src[start:r.pos]
}

func (r *renderer) identifier() string {
	start := r.pos
	for r.pos < len(r.src) && isIdent(r.src[r.pos]) {
		r.pos++
	}
	return r.src[start:r.pos]
}

// str consumes a double-quoted string. There are no escape sequences.
func (r *renderer) str(what string) (string, error) {
	if r.eof() {
		return "", r.errorf("unexpected end of input, expected %s", what)
	}
	if r.src[r.pos] != '"' {
		return "", r.errorf("expected quotes around %s", what)
	}
	start := r.pos
	r.pos++
	for r.pos < len(r.src) && r.src[r.pos] != '"' {
		r.pos++
	}
	if r.eof() {
		r.pos = start
		return "", r.errorf("unterminated %s", what)
	}
	s := r.src[start+1 : r.pos]
	r.pos++
	return s, nil
}

func (r *renderer) expect(c byte, after string) error {
	r.skipSpace()
	if r.eof() || r.src[r.pos] != c {
		return r.errorf("expected '%c' after %s", c, after)
	}
	r.pos++
	return nil
}

func (r *renderer) write(s string) error {
	_, err := io.WriteString(r.w, s)
	return err
}

// nodes renders a node sequence. A nested sequence stops in front of the
// closing '}' and leaves it for the caller.
func (r *renderer) nodes(nested bool) error {
	for {
		r.skipSpace()
		if r.eof() {
			if nested {
				return r.errorf("expected '}' after element body")
			}
			return nil
		}

		c := r.src[r.pos]
		switch {
		case c == '[':
			if err := r.text(); err != nil {
				return err
			}
			continue
		case c == '}':
			if nested {
				return nil
			}
			return r.errorf("unexpected '}'")
		case !isIdent(c):
			return r.errorf("unexpected character %q", c)
		}

		var err error
		switch name := r.name(); name {
		case "call":
			err = r.call()
		case "include":
			err = r.include()
		case "write":
			err = r.writeDirective()
		case "read":
			err = r.lookup("read key", r.ctx.Var)
		case "param":
			err = r.lookup("param name", r.ctx.Param)
		default:
			err = r.element(name)
		}
		if err != nil {
			return err
		}
	}
}

// text renders a [ ... ] block. Newlines become <br>; a run of tabs
// followed by whitespace or the end of input becomes a single space,
// any other tab run is dropped.
func (r *renderer) text() error {
	open := r.pos
	r.pos++

	run := r.pos
	flush := func() error {
		if run < r.pos {
			return Escape(r.w, r.src[run:r.pos])
		}
		return nil
	}

	for r.pos < len(r.src) && r.src[r.pos] != ']' {
		c := r.src[r.pos]
		if c != '\n' && c != '\t' {
			r.pos++
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		r.pos++

		if c == '\n' {
			if err := r.write("<br>"); err != nil {
				return err
			}
		} else {
			for r.pos < len(r.src) && r.src[r.pos] == '\t' {
				r.pos++
			}
			if r.eof() || isSpace(r.src[r.pos]) {
				if err := r.write(" "); err != nil {
					return err
				}
			}
		}
		run = r.pos
	}

	if err := flush(); err != nil {
		return err
	}
	if r.eof() {
		r.pos = open
		return r.errorf("unterminated text block")
	}
	r.pos++
	return nil
}

func (r *renderer) element(tag string) error {
	if err := r.write("<" + tag); err != nil {
		return err
	}

	r.skipSpace()
	for r.pos < len(r.src) && isIdent(r.src[r.pos]) {
		attr := r.name()
		r.skipSpace()

		if err := r.write(" " + attr); err != nil {
			return err
		}
		if r.eof() {
			return r.errorf("unexpected end of input in element %q", tag)
		}
		if r.src[r.pos] != '=' {
			continue
		}
		r.pos++
		r.skipSpace()

		val, err := r.str("attribute value")
		if err != nil {
			return err
		}
		r.skipSpace()

		if err := r.write(`="`); err != nil {
			return err
		}
		if err := Escape(r.w, val); err != nil {
			return err
		}
		if err := r.write(`"`); err != nil {
			return err
		}
	}

	if r.eof() {
		return r.errorf("unexpected end of input in element %q", tag)
	}

	switch r.src[r.pos] {
	case ';':
		r.pos++
		if isVoid(tag) {
			return r.write(">")
		}
		return r.write("></" + tag + ">")
	case '{':
		r.pos++
		if err := r.write(">"); err != nil {
			return err
		}
		if err := r.nodes(true); err != nil {
			return err
		}
		r.pos++
		return r.write("</" + tag + ">")
	case '[':
		if err := r.write(">"); err != nil {
			return err
		}
		if err := r.text(); err != nil {
			return err
		}
		return r.write("</" + tag + ">")
	}
	return r.errorf("expected ';', '{' or '[' after element %q", tag)
}

func (r *renderer) call() error {
	r.skipSpace()
	at := r.pos
	name := r.identifier()
	if name == "" {
		return r.errorf("expected stream name after call")
	}
	if err := r.expect(';', "stream name"); err != nil {
		return err
	}

	fn, ok := r.e.Streams.Lookup(name)
	if !ok {
		return &SyntaxError{Pos: at, Msg: fmt.Sprintf("unknown stream function %q", name), Err: ErrUnknownStream}
	}
	if err := fn(r.w, r.ctx); err != nil {
		return fmt.Errorf("stream %q: %w", name, err)
	}
	return nil
}

func (r *renderer) include() error {
	r.skipSpace()
	path, err := r.str("include path")
	if err != nil {
		return err
	}
	if err := r.expect(';', "include path"); err != nil {
		return err
	}

	if r.depth >= MaxIncludeDepth {
		return &SyntaxError{Pos: r.pos, Msg: fmt.Sprintf("including %q", path), Err: ErrIncludeDepth}
	}

	data, err := r.e.files().ReadFile(path)
	if err != nil {
		log.Printf("[template] warning: failed to include template file %q: %v", path, err)
		return nil
	}

	sub := &renderer{e: r.e, w: r.w, ctx: r.ctx, src: string(data), depth: r.depth + 1}
	if err := sub.nodes(false); err != nil {
		return fmt.Errorf("include %q: %w", path, err)
	}
	return nil
}

func (r *renderer) writeDirective() error {
	r.skipSpace()
	text, err := r.str("write argument")
	if err != nil {
		return err
	}
	if err := r.expect(';', "write argument"); err != nil {
		return err
	}
	return r.write(text)
}

// lookup implements read and param: a quoted key, an optional quoted
// default, then ';'. The found value or the default is escaped.
func (r *renderer) lookup(what string, get func(string) (string, bool)) error {
	r.skipSpace()
	key, err := r.str(what)
	if err != nil {
		return err
	}
	r.skipSpace()

	var def string
	if !r.eof() && r.src[r.pos] == ',' {
		r.pos++
		r.skipSpace()
		if def, err = r.str("default value"); err != nil {
			return err
		}
	}
	if err := r.expect(';', what); err != nil {
		return err
	}

	if val, ok := get(key); ok {
		return Escape(r.w, val)
	}
	return Escape(r.w, def)
}
