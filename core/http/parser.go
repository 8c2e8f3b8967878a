package http

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/searchktools/tmplserve/core/arena"
)

var (
	// ErrClosed reports that the peer closed the stream before a new request began.
	ErrClosed = errors.New("connection closed")

	ErrInvalidRequest = errors.New("invalid HTTP request")

	// ErrHeaderTooLarge reports a request line or header that does not fit the read buffer.
	ErrHeaderTooLarge = errors.New("request header too large")

	ErrUnsupportedEncoding = errors.New("unsupported transfer encoding")
)

// ReadRequest reads one request from br into req. Strings and the body are
// copied into a, so they stay valid after br is advanced and until a is reset.
func ReadRequest(br *bufio.Reader, a *arena.Arena, req *Request) error {
	req.Reset()

	var line []byte
	var err error
	for {
		line, err = readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return ErrClosed
			}
			return err
		}
		// Tolerate stray CRLFs between requests.
		if len(line) > 0 {
			break
		}
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return fmt.Errorf("%w: malformed request line", ErrInvalidRequest)
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 <= 0 {
		return fmt.Errorf("%w: malformed request line", ErrInvalidRequest)
	}
	sp2 += sp1 + 1

	version := line[sp2+1:]
	if !bytes.HasPrefix(version, []byte("HTTP/")) {
		return fmt.Errorf("%w: bad protocol version %q", ErrInvalidRequest, version)
	}

	if req.Method, err = a.StringBytes(line[:sp1]); err != nil {
		return err
	}
	if req.Target, err = a.StringBytes(line[sp1+1 : sp2]); err != nil {
		return err
	}
	if req.Version, err = a.StringBytes(version); err != nil {
		return err
	}

	contentLength := 0
	for {
		line, err = readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return fmt.Errorf("%w: malformed header line", ErrInvalidRequest)
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])

		switch {
		case asciiEqualFold(name, "Content-Length"):
			n, perr := strconv.Atoi(string(value))
			if perr != nil || n < 0 {
				return fmt.Errorf("%w: bad Content-Length %q", ErrInvalidRequest, value)
			}
			contentLength = n
		case asciiEqualFold(name, "Transfer-Encoding") && !asciiEqualFold(value, "identity"):
			return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, value)
		}

		if len(req.Headers) >= MaxHeaders {
			continue
		}
		var n, v string
		if n, err = a.StringBytes(name); err != nil {
			return err
		}
		if v, err = a.StringBytes(value); err != nil {
			return err
		}
		req.AddHeader(n, v)
	}

	if contentLength > 0 {
		body, err := a.Alloc(contentLength)
		if err != nil {
			return fmt.Errorf("request body of %d bytes: %w", contentLength, err)
		}
		if _, err := io.ReadFull(br, body); err != nil {
			return err
		}
		req.Body = body
	}

	return nil
}

// readLine returns the next line without its CRLF. The slice aliases br's buffer.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrHeaderTooLarge
		}
		return line, err
	}

	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c1, c2 := b[i], s[i]
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}
