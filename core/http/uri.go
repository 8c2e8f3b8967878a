package http

import (
	"log"
	"strings"

	"github.com/searchktools/tmplserve/core/arena"
)

// MaxParams caps the number of query parameters kept per request.
const MaxParams = 32

// Param is one decoded query parameter.
type Param struct {
	Key   string
	Value string
}

// URI is the parsed request target: a decoded, dot-resolved page path plus
// the ordered query parameters.
type URI struct {
	Page   string
	Query  string
	Params []Param

	pbuf [MaxParams]Param
}

// MoveTo copies the page and every parameter into a, so the parsed URI is
// released with the rest of the request. A string that does not fit is
// left where it is.
func (u *URI) MoveTo(a *arena.Arena) {
	u.Page = moveString(a, u.Page)
	for i := range u.Params {
		u.Params[i].Key = moveString(a, u.Params[i].Key)
		u.Params[i].Value = moveString(a, u.Params[i].Value)
	}
}

func moveString(a *arena.Arena, s string) string {
	moved, err := a.String(s)
	if err != nil {
		return s
	}
	return moved
}

// ParseURI parses a request target into a new URI.
func ParseURI(target string) *URI {
	u := &URI{}
	u.Parse(target)
	return u
}

// Parse splits target on the first '?', decodes and resolves the page and
// decodes every key=value pair of the query.
// The resulting page always begins with '/' and never contains "." or ".." segments.
func (u *URI) Parse(target string) {
	page, query, _ := strings.Cut(target, "?")

	u.Page = resolve(Decode(page))
	u.Query = query
	u.Params = u.pbuf[:0]

	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		if len(u.Params) == MaxParams {
			log.Printf("warning: max uri param limit (%d) reached, dropped trailing data", MaxParams)
			break
		}

		key, val, _ := strings.Cut(pair, "=")
		u.Params = append(u.Params, Param{Key: Decode(key), Value: Decode(val)})
	}
}

// Param looks up a query parameter by case-insensitive name. The first match wins.
func (u *URI) Param(name string) (string, bool) {
	for i := range u.Params {
		if strings.EqualFold(u.Params[i].Key, name) {
			return u.Params[i].Value, true
		}
	}
	return "", false
}

// Decode percent-decodes s. Invalid escapes are kept literally; an escape
// cut short by the end of the string is dropped.
func Decode(s string) string {
	i := strings.IndexByte(s, '%')
	if i < 0 {
		return s
	}

	b := make([]byte, 0, len(s))
	b = append(b, s[:i]...)

	for i < len(s) {
		c := s[i]
		i++
		if c != '%' {
			b = append(b, c)
			continue
		}

		if i+2 > len(s) {
			log.Printf("warning: url encoded escape sequence broken by end of string")
			break
		}

		hi, ok1 := unhex(s[i])
		lo, ok2 := unhex(s[i+1])
		if ok1 && ok2 {
			b = append(b, hi<<4|lo)
		} else {
			log.Printf("warning: invalid url encoded escape sequence '%%%s'", s[i:i+2])
			b = append(b, '%', s[i], s[i+1])
		}
		i += 2
	}

	return string(b)
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// resolve rebuilds path against a logical root: empty and "." segments are
// dropped, ".." removes the previous segment and is clamped at the root.
func resolve(path string) string {
	var stack [16]string
	segs := stack[:0]

	for path != "" {
		var seg string
		seg, path, _ = strings.Cut(path, "/")

		switch seg {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, seg)
		}
	}

	if len(segs) == 0 {
		return "/"
	}

	n := 0
	for _, s := range segs {
		n += len(s) + 1
	}

	var sb strings.Builder
	sb.Grow(n)
	for _, s := range segs {
		sb.WriteByte('/')
		sb.WriteString(s)
	}
	return sb.String()
}
