package http

import (
	"net"
	"strings"

	"github.com/searchktools/tmplserve/core/arena"
)

// KeepAliveMax is the request count after which a keep-alive session is closed.
const KeepAliveMax = 99

// Context is the per-request aggregate handed to hooks, the mapping table
// and the template engine. A slot owns one Context for its whole lifetime
// and resets it before every request.
type Context struct {
	Request  Request
	Response Response
	URI      URI

	// MimeType is sent as Content-Type.
	MimeType string

	Vars Vars

	// Peer is the remote address of the connection; nil outside a socket session.
	Peer net.Addr

	// Slot is the index of the serving slot, -1 when not served by a slot.
	Slot int

	KeepAlive bool

	arena *arena.Arena
}

// NewContext creates a Context allocating from a.
func NewContext(a *arena.Arena) *Context {
	c := &Context{arena: a, Slot: -1}
	c.Reset()
	return c
}

// Reset invalidates the previous request: the arena is reset, the variable
// store is rebound and the response returns to 200 OK.
func (c *Context) Reset() {
	c.arena.Reset()
	c.Request.Reset()
	c.Response.Reset()
	c.URI = URI{}
	c.MimeType = ""
	c.KeepAlive = false
	c.Vars.bind(c.arena)
}

// Prepare derives the URI and keep-alive flag from the parsed request.
// The decoded page and parameters are stored in the arena.
func (c *Context) Prepare() {
	c.URI.Parse(c.Request.Target)
	c.URI.MoveTo(c.arena)
	c.KeepAlive = strings.EqualFold(c.Request.Header("Connection"), "keep-alive")
}

// Arena returns the region backing this request.
func (c *Context) Arena() *arena.Arena {
	return c.arena
}

// SetVar stores a copy of value under key for the rest of the request.
func (c *Context) SetVar(key, value string) error {
	return c.Vars.Set(key, value)
}

// SetVarMoved stores value under key without copying it.
func (c *Context) SetVarMoved(key, value string) {
	c.Vars.SetMoved(key, value)
}

// Var returns the value stored under key.
func (c *Context) Var(key string) (string, bool) {
	return c.Vars.Get(key)
}

// Param returns a query parameter by case-insensitive name.
func (c *Context) Param(name string) (string, bool) {
	return c.URI.Param(name)
}

// IsRoute reports whether the resolved page equals path.
func (c *Context) IsRoute(path string) bool {
	return c.URI.Page == path
}

// SetStatus sets the response status; an empty message uses the standard phrase.
func (c *Context) SetStatus(code int, message string) {
	c.Response.SetStatus(code, message)
}

// SetBody replaces the response body and MIME type.
func (c *Context) SetBody(mimeType string, body []byte) {
	c.MimeType = mimeType
	c.Response.SetBody(body)
}

// Write appends to the response body.
func (c *Context) Write(p []byte) (int, error) {
	return c.Response.Write(p)
}

// WriteString appends to the response body.
func (c *Context) WriteString(s string) (int, error) {
	return c.Response.WriteString(s)
}
