package http

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// status lines for the codes the server produces itself
var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusText returns the reason phrase for code, or "Unknown".
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Unknown"
}

// Response is the in-progress response of a request. The body is either a
// byte slice set with SetBody or a pooled buffer filled through Write.
type Response struct {
	Status  int
	Message string
	Headers []Header
	Body    []byte

	buf  *bytebufferpool.ByteBuffer
	hbuf [16]Header
}

// Reset prepares the response for a new request: 200 OK, no headers, no body.
func (r *Response) Reset() {
	r.Release()
	r.Status = 200
	r.Message = "OK"
	r.Headers = r.hbuf[:0]
	r.Body = nil
}

// SetStatus sets the status code; an empty message uses the standard phrase.
func (r *Response) SetStatus(code int, message string) {
	if message == "" {
		message = StatusText(code)
	}
	r.Status = code
	r.Message = message
}

// SetHeader replaces any header of the same (case-insensitive) name.
func (r *Response) SetHeader(name, value string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value
			return
		}
	}
	r.AddHeader(name, value)
}

// AddHeader appends a header.
func (r *Response) AddHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = r.hbuf[:0]
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// SetBody replaces the body with b and drops anything written so far.
func (r *Response) SetBody(b []byte) {
	r.Release()
	r.Body = b
}

// Write appends p to the pooled body buffer.
func (r *Response) Write(p []byte) (int, error) {
	if r.buf == nil {
		r.buf = bytebufferpool.Get()
		r.buf.Write(r.Body)
		r.Body = nil
	}
	return r.buf.Write(p)
}

// WriteString appends s to the pooled body buffer.
func (r *Response) WriteString(s string) (int, error) {
	if r.buf == nil {
		r.buf = bytebufferpool.Get()
		r.buf.Write(r.Body)
		r.Body = nil
	}
	return r.buf.WriteString(s)
}

// Bytes returns the body as it will be sent.
func (r *Response) Bytes() []byte {
	if r.buf != nil {
		return r.buf.B
	}
	return r.Body
}

// Release returns the pooled body buffer, if any.
func (r *Response) Release() {
	if r.buf != nil {
		bytebufferpool.Put(r.buf)
		r.buf = nil
	}
}

// WriteResponse serializes r as HTTP/1.1 with a Content-Length and flushes bw.
func WriteResponse(bw *bufio.Writer, r *Response) error {
	body := r.Bytes()

	var num [20]byte

	bw.WriteString("HTTP/1.1 ")
	bw.Write(strconv.AppendInt(num[:0], int64(r.Status), 10))
	bw.WriteByte(' ')
	bw.WriteString(r.Message)
	bw.WriteString("\r\n")

	for _, h := range r.Headers {
		bw.WriteString(h.Name)
		bw.WriteString(": ")
		bw.WriteString(h.Value)
		bw.WriteString("\r\n")
	}

	bw.WriteString("Content-Length: ")
	bw.Write(strconv.AppendInt(num[:0], int64(len(body)), 10))
	bw.WriteString("\r\n\r\n")
	bw.Write(body)

	return bw.Flush()
}
