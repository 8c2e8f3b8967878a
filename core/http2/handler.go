package http2

import (
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/searchktools/tmplserve/core/arena"
	srvhttp "github.com/searchktools/tmplserve/core/http"
	"github.com/searchktools/tmplserve/core/router"
)

// Dispatcher serves a prepared request context.
type Dispatcher interface {
	Dispatch(ctx *srvhttp.Context) router.Outcome
}

// hop-by-hop headers that HTTP/2 forbids.
var connectionHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"transfer-encoding": true,
	"upgrade":           true,
	"proxy-connection":  true,
}

// Handler adapts net/http requests to arena-backed request contexts.
// Streams run concurrently, so each takes a context from a pool instead of
// a slot.
type Handler struct {
	d     Dispatcher
	pool  sync.Pool
	size  int
	count atomic.Uint64
}

// NewHandler returns a handler whose contexts own arenas of arenaSize bytes.
func NewHandler(d Dispatcher, arenaSize int) *Handler {
	if arenaSize <= 0 {
		arenaSize = arena.DefaultSize
	}
	h := &Handler{d: d, size: arenaSize}
	h.pool.New = func() any {
		return srvhttp.NewContext(arena.New(h.size))
	}
	return h
}

// Requests counts requests served.
func (h *Handler) Requests() uint64 {
	return h.count.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.pool.Get().(*srvhttp.Context)
	defer func() {
		ctx.Response.Release()
		h.pool.Put(ctx)
	}()

	ctx.Reset()
	if addr, err := net.ResolveTCPAddr("tcp", r.RemoteAddr); err == nil {
		ctx.Peer = addr
	}

	if err := fill(ctx, r); err != nil {
		log.Printf("[h2] warning: failed to read request from %s: %v", r.RemoteAddr, err)
		status := http.StatusBadRequest
		if errors.Is(err, arena.ErrExhausted) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	ctx.Prepare()
	ctx.KeepAlive = false
	h.d.Dispatch(ctx)
	h.count.Add(1)

	hdr := w.Header()
	for _, kv := range ctx.Response.Headers {
		if connectionHeaders[strings.ToLower(kv.Name)] {
			continue
		}
		hdr.Add(kv.Name, kv.Value)
	}
	mimeType := ctx.MimeType
	if mimeType == "" {
		mimeType = "text/html"
	}
	hdr.Set("Content-Type", mimeType)

	body := ctx.Response.Bytes()
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(ctx.Response.Status)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}

// fill copies the request line, headers and body of r into ctx's arena.
func fill(ctx *srvhttp.Context, r *http.Request) error {
	a := ctx.Arena()
	req := &ctx.Request

	var err error
	if req.Method, err = a.String(r.Method); err != nil {
		return err
	}
	if req.Target, err = a.String(r.URL.RequestURI()); err != nil {
		return err
	}
	if req.Version, err = a.String(r.Proto); err != nil {
		return err
	}
	if r.Host != "" {
		host, err := a.String(r.Host)
		if err != nil {
			return err
		}
		req.AddHeader("Host", host)
	}
	for name, values := range r.Header {
		for _, v := range values {
			n, err := a.String(name)
			if err != nil {
				return err
			}
			if v, err = a.String(v); err != nil {
				return err
			}
			req.AddHeader(n, v)
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	return readBody(a, req, r.Body, r.ContentLength)
}

func readBody(a *arena.Arena, req *srvhttp.Request, body io.Reader, length int64) error {
	if length > int64(a.Remaining()) {
		return arena.ErrExhausted
	}
	if length >= 0 {
		if length == 0 {
			return nil
		}
		buf, err := a.Alloc(int(length))
		if err != nil {
			return err
		}
		if _, err := io.ReadFull(body, buf); err != nil {
			return err
		}
		req.Body = buf
		return nil
	}

	// Unknown length: read into the free tail of the arena, one byte past
	// the limit to detect overflow.
	data, err := io.ReadAll(io.LimitReader(body, int64(a.Remaining())+1))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	req.Body, err = a.Bytes(data)
	return err
}
