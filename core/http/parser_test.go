package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/searchktools/tmplserve/core/arena"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReaderSize(strings.NewReader(s), 256)
}

func TestReadRequestBasic(t *testing.T) {
	a := arena.New(4096)
	var req Request

	raw := "GET /index.html?x=1 HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive\r\n\r\n"
	if err := ReadRequest(reader(raw), a, &req); err != nil {
		t.Fatalf("ReadRequest error: %v", err)
	}

	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if req.Target != "/index.html?x=1" {
		t.Errorf("Target = %q", req.Target)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("Version = %q", req.Version)
	}
	if req.Header("connection") != "keep-alive" {
		t.Errorf("Header(connection) = %q, want keep-alive", req.Header("connection"))
	}
	if len(req.Body) != 0 {
		t.Errorf("unexpected body %q", req.Body)
	}
}

func TestReadRequestBody(t *testing.T) {
	a := arena.New(4096)
	var req Request

	raw := "POST /form HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloGET"
	br := reader(raw)
	if err := ReadRequest(br, a, &req); err != nil {
		t.Fatalf("ReadRequest error: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("Body = %q, want hello", req.Body)
	}

	rest, _ := io.ReadAll(br)
	if string(rest) != "GET" {
		t.Errorf("reader left %q, want GET", rest)
	}
}

func TestReadRequestSequential(t *testing.T) {
	a := arena.New(4096)
	var req Request

	raw := "GET /one HTTP/1.1\r\n\r\n\r\nGET /two HTTP/1.1\r\n\r\n"
	br := reader(raw)

	for _, want := range []string{"/one", "/two"} {
		a.Reset()
		if err := ReadRequest(br, a, &req); err != nil {
			t.Fatalf("ReadRequest error: %v", err)
		}
		if req.Target != want {
			t.Errorf("Target = %q, want %q", req.Target, want)
		}
	}

	if err := ReadRequest(br, a, &req); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadRequest at EOF = %v, want ErrClosed", err)
	}
}

func TestReadRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrClosed},
		{"no target", "GET\r\n\r\n", ErrInvalidRequest},
		{"bad version", "GET / FTP/1.0\r\n\r\n", ErrInvalidRequest},
		{"bad header", "GET / HTTP/1.1\r\nnocolon\r\n\r\n", ErrInvalidRequest},
		{"bad length", "GET / HTTP/1.1\r\nContent-Length: -3\r\n\r\n", ErrInvalidRequest},
		{"chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", ErrUnsupportedEncoding},
		{"truncated headers", "GET / HTTP/1.1\r\nHost: x\r\n", io.ErrUnexpectedEOF},
		{"long line", "GET /" + strings.Repeat("a", 400) + " HTTP/1.1\r\n\r\n", ErrHeaderTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			err := ReadRequest(reader(tt.raw), arena.New(4096), &req)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadRequestArenaExhausted(t *testing.T) {
	var req Request

	raw := "POST / HTTP/1.1\r\nContent-Length: 1000\r\n\r\n" + strings.Repeat("x", 1000)
	err := ReadRequest(reader(raw), arena.New(256), &req)
	if !errors.Is(err, arena.ErrExhausted) {
		t.Errorf("got %v, want arena.ErrExhausted", err)
	}
}

func TestWriteResponse(t *testing.T) {
	var resp Response
	resp.Reset()
	resp.SetStatus(404, "")
	resp.AddHeader("Content-Type", "text/html")
	resp.WriteString("<p>gone</p>")

	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	if err := WriteResponse(bw, &resp); err != nil {
		t.Fatalf("WriteResponse error: %v", err)
	}
	resp.Release()

	want := "HTTP/1.1 404 Not found\r\nContent-Type: text/html\r\nContent-Length: 11\r\n\r\n<p>gone</p>"
	if out.String() != want {
		t.Errorf("got %q\nwant %q", out.String(), want)
	}
}

func TestResponseSetHeaderReplaces(t *testing.T) {
	var resp Response
	resp.Reset()
	resp.SetHeader("X-Test", "1")
	resp.SetHeader("x-test", "2")

	if len(resp.Headers) != 1 || resp.Headers[0].Value != "2" {
		t.Errorf("headers = %+v, want single X-Test: 2", resp.Headers)
	}
}

func TestResponseSetBodyDropsWrites(t *testing.T) {
	var resp Response
	resp.Reset()
	resp.WriteString("partial")
	resp.SetBody([]byte("final"))

	if string(resp.Bytes()) != "final" {
		t.Errorf("Bytes() = %q, want final", resp.Bytes())
	}
}
