package http

import "strings"

// MaxHeaders caps the number of request headers kept; extras are ignored.
const MaxHeaders = 64

// Header is one name/value pair, in wire order.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed HTTP/1.x request. Every string and the body live in
// the arena the request was read into.
type Request struct {
	Method  string
	Target  string
	Version string
	Headers []Header
	Body    []byte

	hbuf [MaxHeaders]Header
}

// Reset clears the request for reuse without releasing its header storage.
func (r *Request) Reset() {
	r.Method = ""
	r.Target = ""
	r.Version = ""
	r.Headers = r.hbuf[:0]
	r.Body = nil
}

// Lookup finds a header by case-insensitive name.
func (r *Request) Lookup(name string) (string, bool) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			return r.Headers[i].Value, true
		}
	}
	return "", false
}

// Header returns the value of the named header, or "".
func (r *Request) Header(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// AddHeader appends a header. Headers past MaxHeaders are dropped.
func (r *Request) AddHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = r.hbuf[:0]
	}
	if len(r.Headers) < MaxHeaders {
		r.Headers = append(r.Headers, Header{Name: name, Value: value})
	}
}
