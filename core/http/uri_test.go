package http

import "testing"

func TestParseURIPage(t *testing.T) {
	tests := []struct {
		target string
		page   string
	}{
		{"/", "/"},
		{"", "/"},
		{"/index.html", "/index.html"},
		{"/a/b/", "/a/b"},
		{"//a///b", "/a/b"},
		{"/a/./b", "/a/b"},
		{"/a/../b", "/b"},
		{"/a/../../etc/passwd", "/etc/passwd"},
		{"/../../..", "/"},
		{"/hello%20world", "/hello world"},
		{"/%2e%2e/secret", "/secret"},
		{"/public/file.txt?x=1", "/public/file.txt"},
	}

	for _, tt := range tests {
		u := ParseURI(tt.target)
		if u.Page != tt.page {
			t.Errorf("ParseURI(%q).Page = %q, want %q", tt.target, u.Page, tt.page)
		}
	}
}

func TestParseURINoDotSegments(t *testing.T) {
	targets := []string{
		"/a/../../b/./c/..",
		"/%2E%2E/%2e/x",
		"/./.././.../x",
	}

	for _, target := range targets {
		page := ParseURI(target).Page
		if page[0] != '/' {
			t.Errorf("page %q does not start with '/'", page)
		}
		for _, seg := range splitSegments(page) {
			if seg == "." || seg == ".." || seg == "" {
				t.Errorf("ParseURI(%q).Page = %q contains segment %q", target, page, seg)
			}
		}
	}
}

func splitSegments(page string) []string {
	if page == "/" {
		return nil
	}
	var segs []string
	start := 1
	for i := 1; i <= len(page); i++ {
		if i == len(page) || page[i] == '/' {
			segs = append(segs, page[start:i])
			start = i + 1
		}
	}
	return segs
}

func TestParseURIQuery(t *testing.T) {
	u := ParseURI("/search?q=go%20lang&Page=2&&flag&empty=")

	if u.Query != "q=go%20lang&Page=2&&flag&empty=" {
		t.Errorf("Query = %q", u.Query)
	}

	want := []Param{
		{"q", "go lang"},
		{"Page", "2"},
		{"flag", ""},
		{"empty", ""},
	}
	if len(u.Params) != len(want) {
		t.Fatalf("got %d params, want %d: %v", len(u.Params), len(want), u.Params)
	}
	for i, p := range want {
		if u.Params[i] != p {
			t.Errorf("param %d = %+v, want %+v", i, u.Params[i], p)
		}
	}
}

func TestURIParamCaseInsensitive(t *testing.T) {
	u := ParseURI("/?Name=first&name=second")

	v, ok := u.Param("NAME")
	if !ok || v != "first" {
		t.Errorf("Param(NAME) = %q, %v; want first, true", v, ok)
	}

	if _, ok := u.Param("missing"); ok {
		t.Error("Param(missing) should not be found")
	}
}

func TestParseURIParamLimit(t *testing.T) {
	target := "/?"
	for i := 0; i < MaxParams+5; i++ {
		target += "k=v&"
	}

	u := ParseURI(target)
	if len(u.Params) != MaxParams {
		t.Errorf("got %d params, want %d", len(u.Params), MaxParams)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"plain", "plain"},
		{"a%20b", "a b"},
		{"%41%42%43", "ABC"},
		{"100%zz", "100%zz"},
		{"cut%4", "cut"},
		{"a+b", "a+b"},
	}

	for _, tt := range tests {
		if got := Decode(tt.in); got != tt.out {
			t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
